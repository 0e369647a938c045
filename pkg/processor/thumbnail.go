package processor

import (
	"image"

	"github.com/disintegration/imaging"
)

// thumbnailProcessor scales the image down to fit the requested bounding
// box. It never upscales: a request larger than the source returns the
// source unchanged, avoiding quality loss and wasted storage.
type thumbnailProcessor struct{}

func (thumbnailProcessor) Name() string   { return "thumbnail" }
func (thumbnailProcessor) UsesPPOI() bool { return false }

func (thumbnailProcessor) Apply(img image.Image, params Params, pc *Context) (image.Image, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return nil, &ParameterError{Processor: "thumbnail", Reason: "target width and height must be positive"}
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, &ParameterError{Processor: "thumbnail", Reason: "source image has zero area"}
	}

	targetW, targetH := params.Width, params.Height
	if targetW > srcW {
		targetW = srcW
	}
	if targetH > srcH {
		targetH = srcH
	}

	if params.Stretch {
		// Explicitly requested distortion: exact dimensions, still capped
		// at the source resolution per axis.
		return imaging.Resize(img, targetW, targetH, imaging.Lanczos), nil
	}

	if srcW <= targetW && srcH <= targetH {
		return img, nil
	}
	return imaging.Fit(img, targetW, targetH, imaging.Lanczos), nil
}
