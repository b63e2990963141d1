package normalize_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize_EmptyInput(t *testing.T) {
	n := normalize.New()

	_, err := n.Normalize("", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = n.Normalize("   \n\t", []byte{})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestNormalize_TextOnly(t *testing.T) {
	n := normalize.New()

	in, err := n.Normalize("  How do I improve soil fertility?  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "How do I improve soil fertility?", in.Text)
	assert.True(t, in.TextProvided)
	assert.False(t, in.HasImage())
}

func TestNormalize_ImageOnlyUsesDefaultPrompt(t *testing.T) {
	n := normalize.New()

	in, err := n.Normalize("", pngBytes(t, 4, 3, color.NRGBA{R: 10, G: 200, B: 10, A: 255}))
	require.NoError(t, err)
	require.True(t, in.HasImage())
	assert.Equal(t, domain.DefaultImagePrompt, in.Text)
	assert.False(t, in.TextProvided)
	assert.Equal(t, "image/jpeg", in.Image.MIMEType)
	assert.Equal(t, "png", in.Image.SourceFormat)
	assert.Equal(t, 4, in.Image.Width)
	assert.Equal(t, 3, in.Image.Height)

	_, err = jpeg.Decode(bytes.NewReader(in.Image.Data))
	assert.NoError(t, err)
}

func TestNormalize_CustomDefaultPrompt(t *testing.T) {
	n := normalize.New(normalize.WithDefaultPrompt("What is wrong with this leaf?"))

	in, err := n.Normalize("", pngBytes(t, 2, 2, color.White))
	require.NoError(t, err)
	assert.Equal(t, "What is wrong with this leaf?", in.Text)
}

func TestNormalize_MalformedImage(t *testing.T) {
	n := normalize.New()

	_, err := n.Normalize("what is this?", []byte("definitely not an image"))
	assert.ErrorIs(t, err, domain.ErrDecodeFailed)
}

// withDeclaredSize rewrites the IHDR dimensions of a PNG, leaving the
// pixel data as it was.
func withDeclaredSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalize_HugeDeclaredDimensions(t *testing.T) {
	n := normalize.New()
	bomb := withDeclaredSize(t, pngBytes(t, 1, 1, color.Black), 1<<20, 1<<20)
	require.Less(t, len(bomb), 200)

	_, err := n.Normalize("soil photo", bomb)
	require.ErrorIs(t, err, domain.ErrDecodeFailed)
	assert.Contains(t, err.Error(), "image dimensions too large")
}

func TestNormalize_PixelBudget(t *testing.T) {
	data := pngBytes(t, 4, 3, color.Black)

	_, err := normalize.New(normalize.WithMaxImagePixels(11)).Normalize("leaf", data)
	assert.ErrorIs(t, err, domain.ErrDecodeFailed)

	in, err := normalize.New(normalize.WithMaxImagePixels(12)).Normalize("leaf", data)
	require.NoError(t, err)
	assert.Equal(t, 4, in.Image.Width)
}

func TestNormalize_TransparentPixelsBecomeWhite(t *testing.T) {
	n := normalize.New()

	in, err := n.Normalize("", pngBytes(t, 8, 8, color.NRGBA{}))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(in.Image.Data))
	require.NoError(t, err)
	r, g, b, _ := img.At(4, 4).RGBA()
	// JPEG is lossy, allow a small tolerance around pure white.
	assert.Greater(t, r>>8, uint32(245))
	assert.Greater(t, g>>8, uint32(245))
	assert.Greater(t, b>>8, uint32(245))
}

func TestNormalize_Downscale(t *testing.T) {
	n := normalize.New(normalize.WithMaxImageDimension(50))

	in, err := n.Normalize("leaf", pngBytes(t, 200, 100, color.Black))
	require.NoError(t, err)
	assert.Equal(t, 50, in.Image.Width)
	assert.Equal(t, 25, in.Image.Height)
}

func TestNormalize_Limits(t *testing.T) {
	t.Run("text too large", func(t *testing.T) {
		n := normalize.New(normalize.WithMaxTextBytes(10))
		_, err := n.Normalize(strings.Repeat("a", 11), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.ErrorIs(t, err, normalize.ErrTextTooLarge)
	})

	t.Run("image too large", func(t *testing.T) {
		n := normalize.New(normalize.WithMaxImageBytes(16))
		_, err := n.Normalize("", pngBytes(t, 10, 10, color.White))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		n := normalize.New()
		_, err := n.Normalize("soil \xff\xfe", nil)
		assert.ErrorIs(t, err, normalize.ErrInvalidUTF8)
		assert.True(t, normalize.IsTextError(err))
	})
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"keeps newlines and tabs", "line1\n\tline2", "line1\n\tline2"},
		{"strips control chars", "crop\x00 yield\x07", "crop yield"},
		{"trims", "  wheat  ", "wheat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalize.SanitizeText(tt.input, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte("rice paddy")
	enc := base64.StdEncoding.EncodeToString(payload)

	got, err := normalize.DecodeDataURL("data:image/png;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = normalize.DecodeDataURL(enc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = normalize.DecodeDataURL(base64.RawStdEncoding.EncodeToString(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = normalize.DecodeDataURL("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = normalize.DecodeDataURL("data:image/png,plain")
	assert.ErrorIs(t, err, domain.ErrDecodeFailed)

	_, err = normalize.DecodeDataURL("data:image/png;base64,%%%")
	assert.ErrorIs(t, err, domain.ErrDecodeFailed)
}
