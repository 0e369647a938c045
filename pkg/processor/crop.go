package processor

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// cropProcessor crops to the requested aspect ratio around the focal point
// and then resizes the crop to the exact requested dimensions.
type cropProcessor struct{}

func (cropProcessor) Name() string   { return "crop" }
func (cropProcessor) UsesPPOI() bool { return true }

func (cropProcessor) Apply(img image.Image, params Params, pc *Context) (image.Image, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return nil, &ParameterError{Processor: "crop", Reason: "target width and height must be positive"}
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, &ParameterError{Processor: "crop", Reason: "source image has zero area"}
	}

	rect := cropRect(srcW, srcH, params.Width, params.Height, pc.Focal.X, pc.Focal.Y)
	if rect.Dx() == 0 || rect.Dy() == 0 {
		// Extreme aspect mismatches round the crop box down to nothing,
		// e.g. a 400x1 source against a 100x1000 target.
		return nil, &ParameterError{
			Processor: "crop",
			Reason: fmt.Sprintf("crop of %dx%d source to %dx%d aspect has no area",
				srcW, srcH, params.Width, params.Height),
		}
	}
	cropped := imaging.Crop(img, rect.Add(bounds.Min))
	return imaging.Resize(cropped, params.Width, params.Height, imaging.Lanczos), nil
}

// cropRect computes the largest box of the target aspect ratio that fits in
// the source, centered on the focal pixel and clamped to the source bounds.
// A focal point at an edge keeps the box flush against that edge instead of
// recentering.
func cropRect(srcW, srcH, targetW, targetH int, focalX, focalY float64) image.Rectangle {
	focalPxX := int(float64(srcW) * focalX)
	focalPxY := int(float64(srcH) * focalY)

	srcRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(targetW) / float64(targetH)

	var left, top, right, bottom int
	if srcRatio >= targetRatio {
		// Source is wider than needed: trim left/right.
		cropW := int(targetRatio*float64(srcH) + 0.5)
		if cropW > srcW {
			cropW = srcW
		}
		top, bottom = 0, srcH
		left = focalPxX - cropW/2
		if left < 0 {
			left = 0
		} else if left+cropW > srcW {
			left = srcW - cropW
		}
		right = left + cropW
	} else {
		// Source is taller than needed: trim top/bottom.
		cropH := int(float64(srcW)/targetRatio + 0.5)
		if cropH > srcH {
			cropH = srcH
		}
		left, right = 0, srcW
		top = focalPxY - cropH/2
		if top < 0 {
			top = 0
		} else if top+cropH > srcH {
			top = srcH - cropH
		}
		bottom = top + cropH
	}

	return image.Rect(left, top, right, bottom)
}
