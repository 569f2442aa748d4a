// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decode turns raw section bytes into trimmed text lines. Bytes are
// read as independent little-endian UTF-16 code units; units that cannot be
// decoded on their own or are not printable are dropped instead of failing
// the stream, because section data interleaves text runs with binary
// records.
package decode

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/hwp2md/pkg/types"
)

// ErrNoText is returned by DecodeStrict when no text was recovered.
var ErrNoText = errors.New("decode: no text recovered")

// Options controls decoding.
type Options struct {
	// Normalize applies Unicode NFC to every line.
	Normalize bool
}

// Stats counts what the decoder saw and dropped.
type Stats struct {
	Units         int
	DroppedUnits  int
	DanglingBytes int
}

// Decode decodes each buffer independently and returns the concatenated
// lines. Buffers that yield no text are skipped; consecutive non-empty
// buffers are separated by one blank line. Decode never fails.
func Decode(bufs [][]byte, opts Options) []types.Line {
	lines, _ := DecodeWithStats(bufs, opts)
	return lines
}

// DecodeStrict is Decode for callers that require content. It returns
// ErrNoText when every recovered line is blank.
func DecodeStrict(bufs [][]byte, opts Options) ([]types.Line, error) {
	lines := Decode(bufs, opts)
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return lines, nil
}

// DecodeWithStats is Decode plus unit counters.
func DecodeWithStats(bufs [][]byte, opts Options) ([]types.Line, Stats) {
	var stats Stats
	lines := []types.Line{}
	for _, buf := range bufs {
		got := decodeBuffer(buf, opts, &stats)
		if len(got) == 0 {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, types.Line{})
		}
		lines = append(lines, got...)
	}
	return lines, stats
}

// decodeBuffer decodes one buffer and strips blank lines from both ends.
func decodeBuffer(buf []byte, opts Options, stats *Stats) []types.Line {
	var lines []types.Line
	var cur strings.Builder
	lossy := false
	prevCR := false

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if opts.Normalize {
			text = norm.NFC.String(text)
		}
		lines = append(lines, types.Line{Text: text, Lossy: lossy})
		cur.Reset()
		lossy = false
	}

	n := len(buf) &^ 1
	stats.DanglingBytes += len(buf) - n
	for i := 0; i < n; i += 2 {
		stats.Units++
		r, ok := unit(buf[i], buf[i+1])
		if !ok {
			stats.DroppedUnits++
			lossy = true
			continue
		}

		switch r {
		case '\n':
			if !prevCR {
				flush()
			}
		case '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
		prevCR = r == '\r'
	}
	if cur.Len() > 0 || lossy {
		flush()
	}

	start, end := 0, len(lines)
	for start < end && lines[start].Text == "" {
		start++
	}
	for end > start && lines[end-1].Text == "" {
		end--
	}
	return lines[start:end]
}

// unit decodes one little-endian code unit. It reports false for lone
// surrogate halves and for characters that are neither printable nor one
// of the line-structuring controls.
func unit(lo, hi byte) (rune, bool) {
	r := rune(uint16(lo) | uint16(hi)<<8)
	if utf16.IsSurrogate(r) {
		return 0, false
	}
	if r == '\n' || r == '\r' || r == '\t' || unicode.IsPrint(r) {
		return r, true
	}
	return 0, false
}
