// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Outcome distinguishes a document with recovered text from a valid
// container that yielded none. Neither is an error.
type Outcome string

const (
	OutcomeConverted Outcome = "converted"
	OutcomeEmpty     Outcome = "empty"
)

// Stats summarizes one conversion.
type Stats struct {
	Sections         int `json:"sections" yaml:"sections"`
	FailedSections   int `json:"failed_sections" yaml:"failed_sections"`
	InflatedSections int `json:"inflated_sections" yaml:"inflated_sections"`
	Bytes            int `json:"bytes" yaml:"bytes"`
	Units            int `json:"units" yaml:"units"`
	DroppedUnits     int `json:"dropped_units" yaml:"dropped_units"`
	Lines            int `json:"lines" yaml:"lines"`
	Headings         int `json:"headings" yaml:"headings"`
	Paragraphs       int `json:"paragraphs" yaml:"paragraphs"`
}

// Result is the output of one successful conversion. A container-level
// failure is reported as an error instead.
type Result struct {
	Outcome  Outcome  `json:"outcome" yaml:"outcome"`
	Document Document `json:"-" yaml:"-"`
	Markdown string   `json:"markdown" yaml:"-"`

	// Warnings holds per-section read or inflate failures that were
	// skipped.
	Warnings []error `json:"-" yaml:"-"`

	Stats Stats `json:"stats" yaml:"stats"`
}

// WarningStrings returns the warning messages.
func (r Result) WarningStrings() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Error()
	}
	return out
}
