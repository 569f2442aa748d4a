// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify infers heading and paragraph structure from decoded
// lines and renders the result as Markdown. Each line is classified on its
// own: no neighbouring line or running state is consulted.
package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/hwp2md/pkg/types"
)

const (
	fallbackTitle = "변환 오류"
	fallbackBody  = "텍스트를 추출할 수 없습니다."
)

// Classify builds a Document from lines. Rules, first match wins:
//  1. blank line: BlankLine
//  2. short, unterminated, few tokens: Heading then BlankLine
//  3. anything else: Paragraph
func Classify(lines []types.Line, cfg types.ClassifierConfig) types.Document {
	cfg = cfg.WithDefaults()
	blocks := make([]types.Block, 0, len(lines))
	for _, l := range lines {
		blocks = append(blocks, ClassifyLine(l.Text, cfg)...)
	}
	return types.Document{Blocks: blocks}
}

// ClassifyLine returns the blocks emitted for one line.
func ClassifyLine(line string, cfg types.ClassifierConfig) []types.Block {
	cfg = cfg.WithDefaults()
	line = strings.TrimSpace(line)
	if line == "" {
		return []types.Block{types.BlankLine()}
	}
	if isHeading(line, cfg) {
		return []types.Block{types.Heading(cfg.HeadingLevel, line), types.BlankLine()}
	}
	return []types.Block{types.Paragraph(line)}
}

func isHeading(line string, cfg types.ClassifierConfig) bool {
	if utf8.RuneCountInString(line) >= cfg.MaxHeadingRunes {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(cfg.Terminals, last) {
		return false
	}
	return len(strings.Fields(line)) <= cfg.MaxHeadingTokens
}

// FallbackDocument is rendered when no text could be extracted.
func FallbackDocument() types.Document {
	return types.Document{Blocks: []types.Block{
		types.Heading(1, fallbackTitle),
		types.BlankLine(),
		types.Paragraph(fallbackBody),
	}}
}

// Render serializes doc as Markdown, one line per block joined by "\n".
// An empty document renders FallbackDocument.
func Render(doc types.Document) string {
	if doc.Empty() {
		doc = FallbackDocument()
	}
	lines := make([]string, len(doc.Blocks))
	for i, b := range doc.Blocks {
		switch b.Kind {
		case types.BlockHeading:
			lines[i] = strings.Repeat("#", max(b.Level, 1)) + " " + b.Text
		case types.BlockParagraph:
			lines[i] = b.Text
		}
	}
	return strings.Join(lines, "\n")
}
