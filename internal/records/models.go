package records

import "strings"

// FieldBinding describes one image field eligible for processing: its
// qualified name ("table.field"), whether uploads to it autogenerate
// derivations, the companion attributes that receive the derived
// dimensions (empty disables dimension persistence for the binding), and
// the named pipelines configured for it.
type FieldBinding struct {
	Name         string
	AutoGenerate bool
	WidthAttr    string
	HeightAttr   string
	Pipelines    []string
}

// Record is one row bound to an image field. SourceKey is empty when the
// field is blank. Width and Height mirror the companion attributes.
type Record struct {
	Field     string
	ID        string
	SourceKey string
	Signature string
	PPOI      string
	Width     int
	Height    int
}

// Blank reports whether the record carries no source image.
func (r Record) Blank() bool { return strings.TrimSpace(r.SourceKey) == "" }

// Filter restricts which bindings a batch run visits.
type Filter struct {
	// OnlyAutoGenerate limits the run to bindings flagged for automatic
	// generation; false means all bindings.
	OnlyAutoGenerate bool
	// Fields is an allowlist of binding names; empty allows all.
	Fields []string
}

func (f Filter) allows(b FieldBinding) bool {
	if f.OnlyAutoGenerate && !b.AutoGenerate {
		return false
	}
	if len(f.Fields) == 0 {
		return true
	}
	for _, name := range f.Fields {
		if name == b.Name {
			return true
		}
	}
	return false
}
