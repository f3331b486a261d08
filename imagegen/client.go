// Package imagegen turns a text prompt into a fixed-size batch of images
// using the OpenAI image generation API.
package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultCount = 2
	DefaultSize  = openai.CreateImageSize1024x1024
	DefaultModel = openai.CreateImageModelDallE2
)

type Options struct {
	APIKey  string
	BaseURL string
	Count   int
	Size    string
	Model   string

	// Archive receives the raw response of every call. Nil disables it.
	Archive *Archive

	// Logf reports archive failures, which do not fail a generation.
	Logf func(format string, args ...any)
}

type Client struct {
	api     *openai.Client
	count   int
	size    string
	model   string
	archive *Archive
	logf    func(format string, args ...any)
}

func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}

	if opts.Count == 0 {
		opts.Count = DefaultCount
	}
	if opts.Count < 1 {
		return nil, fmt.Errorf("invalid image count (must be at least 1): %d", opts.Count)
	}
	if opts.Size == "" {
		opts.Size = DefaultSize
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		count:   opts.Count,
		size:    opts.Size,
		model:   opts.Model,
		archive: opts.Archive,
		logf:    opts.Logf,
	}, nil
}

// Count is the number of images returned for every successful prompt.
func (c *Client) Count() int {
	return c.count
}

// Generate returns exactly Count base64 encoded images for prompt, or a
// *GenerationError. A response missing any image fails the whole prompt.
func (c *Client) Generate(ctx context.Context, prompt string) ([]string, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &GenerationError{Prompt: prompt, Err: ErrEmptyPrompt}
	}

	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		N:              c.count,
		Size:           c.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, &GenerationError{Prompt: prompt, Err: err}
	}

	if c.archive != nil {
		if err := c.archiveResponse(prompt, resp); err != nil {
			c.logf("IMAGES: ERROR: archiving response for %q: %v", prompt, err)
		}
	}

	if len(resp.Data) != c.count {
		return nil, &GenerationError{
			Prompt: prompt,
			Err:    fmt.Errorf("%w: got %d images, want %d", ErrInvalidResponse, len(resp.Data), c.count),
		}
	}

	images := make([]string, 0, len(resp.Data))
	for i, d := range resp.Data {
		if d.B64JSON == "" {
			return nil, &GenerationError{
				Prompt: prompt,
				Err:    fmt.Errorf("%w: image %d is missing", ErrInvalidResponse, i),
			}
		}

		if _, err := base64.StdEncoding.DecodeString(d.B64JSON); err != nil {
			return nil, &GenerationError{
				Prompt: prompt,
				Err:    fmt.Errorf("%w: image %d: %v", ErrInvalidResponse, i, err),
			}
		}

		images = append(images, d.B64JSON)
	}

	return images, nil
}

func (c *Client) archiveResponse(prompt string, resp openai.ImageResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	return c.archive.Write(prompt, raw)
}

// Reason extracts the message worth logging from a generation failure.
func Reason(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Err.Error()
	}

	return err.Error()
}
