package normalize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/aretw0/agrobot/pkg/domain"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxImageBytes bounds the raw upload size (10MB).
	DefaultMaxImageBytes = 10 << 20

	// DefaultMaxImageDimension bounds the longest side after normalization.
	DefaultMaxImageDimension = 2048

	// DefaultMaxImagePixels bounds the declared width × height accepted for
	// decoding (40 MP).
	DefaultMaxImagePixels = 40_000_000

	// JPEGQuality is used when re-encoding normalized images.
	JPEGQuality = 90
)

// DecodeImage decodes data in any registered format and returns it as an
// opaque 3-channel JPEG. Transparent pixels are composited over white and
// palette images are expanded. Images whose longest side exceeds maxDim are
// downscaled preserving the aspect ratio; maxDim <= 0 disables resizing.
// The header is checked against maxPixels before any pixel is allocated;
// maxPixels <= 0 disables the check.
func DecodeImage(data []byte, maxDim, maxPixels int) (*domain.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: image dimensions too large (%dx%d)", domain.ErrDecodeFailed, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", domain.ErrDecodeFailed)
	}

	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, stddraw.Src)
	stddraw.Draw(flat, flat.Bounds(), src, b.Min, stddraw.Over)

	var out image.Image = flat
	if w, h := fitWithin(b.Dx(), b.Dy(), maxDim); w != b.Dx() || h != b.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), flat, flat.Bounds(), draw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("%w: re-encode: %v", domain.ErrDecodeFailed, err)
	}

	return &domain.Image{
		Data:         buf.Bytes(),
		MIMEType:     "image/jpeg",
		Width:        out.Bounds().Dx(),
		Height:       out.Bounds().Dy(),
		SourceFormat: format,
	}, nil
}

// fitWithin returns the dimensions scaled so the longest side is at most max.
func fitWithin(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}
