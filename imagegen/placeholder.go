/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imagegen

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const placeholderSize = 256

// Placeholder returns the base64 PNG shown in place of a player's images
// when their generation failed.
var Placeholder = sync.OnceValue(func() string {
	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))

	background := color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	cross := color.RGBA{R: 0xd9, G: 0x1e, B: 0x18, A: 0xff}

	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			img.Set(x, y, background)
		}
	}

	const margin, thickness = 48, 12
	for i := margin; i < placeholderSize-margin; i++ {
		for t := -thickness / 2; t < thickness/2; t++ {
			img.Set(i+t, i, cross)
			img.Set(placeholderSize-1-i+t, i, cross)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encoding placeholder image: " + err.Error())
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
})
