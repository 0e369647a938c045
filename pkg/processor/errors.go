package processor

import "fmt"

// DecodeError reports a source payload that could not be decoded as an
// image. It is a per-source fault: the batch driver isolates it and moves
// on to the next record.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode %s: unknown or unsupported image format", e.Source)
	}
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParameterError reports degenerate step parameters, e.g. a zero-area
// target. Normally this is a configuration fault caught before any record
// is processed.
type ParameterError struct {
	Processor string
	Reason    string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("processor %s: %s", e.Processor, e.Reason)
}
