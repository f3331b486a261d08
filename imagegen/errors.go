/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imagegen

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrInvalidResponse = errors.New("received invalid response")
)

// GenerationError is returned by Generate for any prompt that did not
// produce a full set of images.
type GenerationError struct {
	Prompt string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating images for %q: %v", e.Prompt, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
