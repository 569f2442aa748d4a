// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ClassifierConfig holds the heading heuristic thresholds. A line becomes a
// heading when it is shorter than MaxHeadingRunes, does not end with one of
// Terminals, and has at most MaxHeadingTokens whitespace-separated tokens.
type ClassifierConfig struct {
	// MaxHeadingRunes is the exclusive length cutoff (default 50).
	MaxHeadingRunes int `json:"max_heading_runes" yaml:"max_heading_runes" mapstructure:"max_heading_runes"`

	// MaxHeadingTokens is the inclusive token cutoff (default 10).
	MaxHeadingTokens int `json:"max_heading_tokens" yaml:"max_heading_tokens" mapstructure:"max_heading_tokens"`

	// Terminals lists the sentence-ending characters (default ".,").
	Terminals string `json:"terminals" yaml:"terminals" mapstructure:"terminals"`

	// HeadingLevel is the level given to detected headings (default 2).
	HeadingLevel int `json:"heading_level" yaml:"heading_level" mapstructure:"heading_level"`
}

// WithDefaults fills zero fields with the default thresholds.
func (c ClassifierConfig) WithDefaults() ClassifierConfig {
	if c.MaxHeadingRunes <= 0 {
		c.MaxHeadingRunes = 50
	}
	if c.MaxHeadingTokens <= 0 {
		c.MaxHeadingTokens = 10
	}
	if c.Terminals == "" {
		c.Terminals = ".,"
	}
	if c.HeadingLevel <= 0 {
		c.HeadingLevel = 2
	}
	return c
}

// ConversionConfig holds settings for the conversion pipeline.
type ConversionConfig struct {
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier" mapstructure:"classifier"`

	// Inflate selects BodyText inflation: auto, always or never.
	Inflate string `json:"inflate" yaml:"inflate" mapstructure:"inflate"`

	// MaxInflatedSize caps one inflated section in bytes (default 64 MiB).
	MaxInflatedSize int64 `json:"max_inflated_size" yaml:"max_inflated_size" mapstructure:"max_inflated_size"`

	// Normalize applies Unicode NFC to decoded lines.
	Normalize bool `json:"normalize" yaml:"normalize" mapstructure:"normalize"`

	// Frontmatter prepends YAML frontmatter to written Markdown files.
	Frontmatter bool `json:"frontmatter" yaml:"frontmatter" mapstructure:"frontmatter"`

	// Overwrite replaces existing Markdown files instead of skipping them.
	Overwrite bool `json:"overwrite" yaml:"overwrite" mapstructure:"overwrite"`

	// Workers bounds concurrent conversions in batch mode (default 5).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// MaxInputSize rejects larger inputs before parsing (default 50 MiB).
	MaxInputSize int64 `json:"max_input_size" yaml:"max_input_size" mapstructure:"max_input_size"`
}

// WithDefaults fills zero fields with defaults.
func (c ConversionConfig) WithDefaults() ConversionConfig {
	c.Classifier = c.Classifier.WithDefaults()
	if c.Inflate == "" {
		c.Inflate = "auto"
	}
	if c.MaxInflatedSize <= 0 {
		c.MaxInflatedSize = 64 << 20
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.MaxInputSize <= 0 {
		c.MaxInputSize = 50 << 20
	}
	return c
}

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// MaxUploadBytes caps a request body (default 50 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	// AllowedOrigins lists CORS origins; empty allows none.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WithDefaults fills zero fields with defaults.
func (c ServerConfig) WithDefaults() ServerConfig {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 50 << 20
	}
	return c
}

// HistoryConfig holds settings for the conversion history database.
type HistoryConfig struct {
	// Enabled turns history recording on.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir holds hwp2md.db (default ".hwp2md").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// WithDefaults fills zero fields with defaults.
func (c HistoryConfig) WithDefaults() HistoryConfig {
	if c.Dir == "" {
		c.Dir = ".hwp2md"
	}
	return c
}

// Config groups all hwp2md settings.
type Config struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	History    HistoryConfig    `json:"history" yaml:"history" mapstructure:"history"`
}
