// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hwp locates the text-bearing sections of an HWP v5 document
// inside its compound-file container.
package hwp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/pdiddy/hwp2md/internal/cfb"
)

const (
	// TextSection is the top-level storage holding the body text streams
	// (Section0, Section1, ...).
	TextSection = "BodyText"

	// FileHeaderStream holds the document signature, version and flags.
	FileHeaderStream = "FileHeader"

	signature = "HWP Document File"

	defaultMaxInflated = 64 << 20
)

var (
	ErrNoFileHeader = errors.New("hwp: no FileHeader stream")
	ErrBadSignature = errors.New("hwp: FileHeader signature mismatch")
	ErrInflate      = errors.New("hwp: section inflate failed")
)

// Property bits of the FileHeader flags word.
const (
	flagCompressed   = 1 << 0
	flagPassword     = 1 << 1
	flagDistribution = 1 << 2
)

// Version is the four-part document format version, e.g. 5.0.3.4.
type Version struct {
	Major, Minor, Build, Revision uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// FileHeader is the parsed FileHeader stream.
type FileHeader struct {
	Version    Version
	Properties uint32
}

// Compressed reports whether BodyText sections are raw deflate streams.
func (h FileHeader) Compressed() bool { return h.Properties&flagCompressed != 0 }

// Encrypted reports whether the document is password protected.
func (h FileHeader) Encrypted() bool { return h.Properties&flagPassword != 0 }

// Distribution reports whether the document is a read-only distribution copy.
func (h FileHeader) Distribution() bool { return h.Properties&flagDistribution != 0 }

// ParseFileHeader decodes the first 40 bytes of a FileHeader stream.
func ParseFileHeader(data []byte) (FileHeader, error) {
	if len(data) < 40 {
		return FileHeader{}, fmt.Errorf("%w: %d bytes", ErrBadSignature, len(data))
	}
	sig := strings.TrimRight(string(data[:32]), "\x00")
	if sig != signature {
		return FileHeader{}, fmt.Errorf("%w: %q", ErrBadSignature, sig)
	}
	return FileHeader{
		Version: Version{
			Major:    data[35],
			Minor:    data[34],
			Build:    data[33],
			Revision: data[32],
		},
		Properties: uint32(data[36]) | uint32(data[37])<<8 | uint32(data[38])<<16 | uint32(data[39])<<24,
	}, nil
}

// ReadFileHeader reads and parses the FileHeader stream of c.
func ReadFileHeader(c *cfb.Container) (FileHeader, error) {
	streams := c.Streams(FileHeaderStream)
	if len(streams) == 0 {
		return FileHeader{}, ErrNoFileHeader
	}
	data, err := c.ReadEntry(streams[0])
	if err != nil {
		return FileHeader{}, err
	}
	return ParseFileHeader(data)
}

// ExtractTextEntries returns the raw payloads of every stream whose
// top-level name is TextSection, in container order. Entries that fail to
// read are skipped and reported in the second return value. Zero matches
// yield an empty slice and no errors.
func ExtractTextEntries(c *cfb.Container) ([][]byte, []error) {
	sections, errs := readSections(c)
	out := make([][]byte, len(sections))
	for i, s := range sections {
		out[i] = s.Data
	}
	return out, errs
}

// InflateMode selects when BodyText sections are inflated.
type InflateMode string

const (
	InflateAuto   InflateMode = "auto"
	InflateAlways InflateMode = "always"
	InflateNever  InflateMode = "never"
)

// Options controls section extraction.
type Options struct {
	Inflate InflateMode

	// MaxInflatedSize caps one inflated section (default 64 MiB).
	MaxInflatedSize int64
}

// Section is one BodyText stream ready for decoding.
type Section struct {
	Path     []string
	Data     []byte
	Inflated bool
}

// Sections extracts BodyText streams like ExtractTextEntries and inflates
// them per opts. A section that fails to inflate keeps its raw bytes and
// adds a warning wrapping ErrInflate.
func Sections(c *cfb.Container, opts Options) ([]Section, []error) {
	if opts.MaxInflatedSize <= 0 {
		opts.MaxInflatedSize = defaultMaxInflated
	}
	sections, warnings := readSections(c)

	compressed := false
	switch opts.Inflate {
	case InflateAlways:
		compressed = true
	case InflateNever:
	default:
		hdr, err := ReadFileHeader(c)
		switch {
		case err == nil:
			compressed = hdr.Compressed()
			if hdr.Encrypted() {
				warnings = append(warnings, errors.New("hwp: document is password protected; text is likely unreadable"))
			}
		case !errors.Is(err, ErrNoFileHeader):
			warnings = append(warnings, err)
		}
	}
	if !compressed {
		return sections, warnings
	}

	for i, s := range sections {
		data, err := inflate(s.Data, opts.MaxInflatedSize)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w: %s: %v", ErrInflate, strings.Join(s.Path, "/"), err))
			continue
		}
		sections[i].Data = data
		sections[i].Inflated = true
	}
	return sections, warnings
}

func readSections(c *cfb.Container) ([]Section, []error) {
	sections := []Section{}
	var errs []error
	for _, e := range c.Streams(TextSection) {
		data, err := c.ReadEntry(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sections = append(sections, Section{Path: e.Path, Data: data})
	}
	return sections, errs
}

func inflate(data []byte, limit int64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("inflated size exceeds %d bytes", limit)
	}
	return out, nil
}
