// Package preview renders small thumbnails of staged images as data URLs.
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

type Options struct {
	Width     int
	Quality   int
	ConvertTo string
}

// Preview is an encoded thumbnail
type Preview struct {
	MimeType string
	Width    int
	Height   int
	DataURL  string
}

type Generator struct {
	opts Options
}

func NewGenerator(opts Options) *Generator {
	if opts.Width <= 0 {
		opts.Width = 256
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.ConvertTo == "" {
		opts.ConvertTo = "jpeg"
	}

	return &Generator{opts: opts}
}

// Preview decodes data and returns a thumbnail no wider than the configured
// width. Images are never upscaled.
func (g *Generator) Preview(filename string, data []byte) (Preview, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Preview{}, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	if img.Bounds().Dx() > g.opts.Width {
		img = imaging.Resize(img, g.opts.Width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	var mimeType string

	convertTo := strings.ToLower(g.opts.ConvertTo)
	if strings.Contains(convertTo, "png") {
		mimeType = "image/png"
		err = png.Encode(&buf, img)
	} else if strings.Contains(convertTo, "webp") {
		mimeType = "image/webp"
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(g.opts.Quality)})
	} else {
		// jpeg for anything else
		mimeType = "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: g.opts.Quality})
	}
	if err != nil {
		return Preview{}, fmt.Errorf("failed to encode preview for %s: %w", filename, err)
	}

	bounds := img.Bounds()

	return Preview{
		MimeType: mimeType,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
