// Package icons derives the device description's sm/lrg PNG and JPEG
// icon variants from one embedded seed image at startup.
package icons

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

//go:embed assets/seed.png
var seedPNG []byte

// Size is one advertised icon dimension; DLNA renderers expect square
// icons at a small and a large size.
type Size struct {
	Name string // "sm" or "lrg"
	Px   uint
}

var sizes = []Size{
	{Name: "sm", Px: 48},
	{Name: "lrg", Px: 120},
}

// Icon is one rendered (size, format) variant ready to serve as-is.
type Icon struct {
	Width, Height, Depth int
	Mimetype              string
	Bytes                 []byte
	Path                  string // e.g. "sm.png"
}

// Build decodes the embedded seed image and resizes it into every
// sm/lrg PNG and JPEG variant the device description advertises.
func Build() ([]Icon, error) {
	seed, _, err := image.Decode(bytes.NewReader(seedPNG))
	if err != nil {
		return nil, fmt.Errorf("icons: decode seed: %w", err)
	}

	var out []Icon
	for _, sz := range sizes {
		resized := resize.Resize(sz.Px, sz.Px, seed, resize.Lanczos3)
		bounds := resized.Bounds()

		var pngBuf bytes.Buffer
		if err := png.Encode(&pngBuf, resized); err != nil {
			return nil, fmt.Errorf("icons: encode %s.png: %w", sz.Name, err)
		}
		out = append(out, Icon{
			Width:    bounds.Dx(),
			Height:   bounds.Dy(),
			Depth:    24,
			Mimetype: "image/png",
			Bytes:    pngBuf.Bytes(),
			Path:     sz.Name + ".png",
		})

		var jpegBuf bytes.Buffer
		if err := jpeg.Encode(&jpegBuf, resized, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("icons: encode %s.jpg: %w", sz.Name, err)
		}
		out = append(out, Icon{
			Width:    bounds.Dx(),
			Height:   bounds.Dy(),
			Depth:    24,
			Mimetype: "image/jpeg",
			Bytes:    jpegBuf.Bytes(),
			Path:     sz.Name + ".jpg",
		})
	}
	return out, nil
}
