package processor

import "image"

// convertProcessor selects the output encoding. It leaves pixels untouched
// and records the target format and encoder options on the context; the
// pipeline runner encodes once after the last step.
type convertProcessor struct{}

func (convertProcessor) Name() string   { return "convert" }
func (convertProcessor) UsesPPOI() bool { return false }

func (convertProcessor) Apply(img image.Image, params Params, pc *Context) (image.Image, error) {
	if params.Format == "" {
		return nil, &ParameterError{Processor: "convert", Reason: "target format is required"}
	}
	format := normalizeFormat(params.Format)
	switch format {
	case "jpeg", "png", "webp", "gif":
	default:
		return nil, &ParameterError{Processor: "convert", Reason: "unsupported target format " + params.Format}
	}

	pc.Format = format
	if params.Quality > 0 {
		pc.Quality = params.Quality
	}
	pc.Lossless = params.Lossless
	return img, nil
}
