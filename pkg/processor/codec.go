package processor

import (
	"bytes"
	"image"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decode decodes an image payload, trying the registered decoders first
// and falling back to an explicit WebP decode. EXIF orientation is applied
// during decode so every downstream transform sees upright pixels. The
// returned format is the lowercase name reported by the decoder ("jpeg",
// "png", "webp", ...).
func Decode(source string, data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		img, derr := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if derr == nil {
			return img, strings.ToLower(format), nil
		}
		err = derr
	}

	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, "webp", nil
	}

	return nil, "", &DecodeError{Source: source, Err: err}
}

// Dimensions reads width, height, and format from an encoded payload's
// header without decoding the pixel data.
func Dimensions(source string, data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", &DecodeError{Source: source, Err: err}
	}
	return cfg.Width, cfg.Height, strings.ToLower(format), nil
}

// Encode re-encodes an image in the requested format. Quality applies to
// jpeg and lossy webp; lossless applies to webp only.
func Encode(img image.Image, format string, quality int, lossless bool) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	switch normalizeFormat(format) {
	case "webp":
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, err
		}
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	case "gif":
		if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
			return nil, err
		}
	default:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DefaultQuality is the encoder quality used when a step does not specify
// one. Matches the JPEG preprocessing default of the stored originals.
const DefaultQuality = 90

func normalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	switch f {
	case "jpg":
		return "jpeg"
	default:
		return f
	}
}

// Extension returns the canonical file extension for a format name.
func Extension(format string) string {
	switch normalizeFormat(format) {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "webp":
		return ".webp"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
