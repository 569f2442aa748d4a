// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Record is one row of conversion history.
type Record struct {
	ID         string    `json:"id" yaml:"id"`
	Source     string    `json:"source" yaml:"source"`
	SHA256     string    `json:"sha256" yaml:"sha256"`
	Outcome    string    `json:"outcome" yaml:"outcome"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Headings   int       `json:"headings" yaml:"headings"`
	Paragraphs int       `json:"paragraphs" yaml:"paragraphs"`
	Warnings   int       `json:"warnings" yaml:"warnings"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}
