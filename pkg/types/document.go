// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data passed between the hwp2md pipeline stages:
// decoded lines, the block document built from them, conversion results
// and configuration.
package types

// Line is one logical line of recovered text.
type Line struct {
	// Text is trimmed of leading and trailing whitespace.
	Text string `json:"text" yaml:"text"`

	// Lossy is set when code units were dropped while decoding this line.
	Lossy bool `json:"lossy,omitempty" yaml:"lossy,omitempty"`
}

// BlockKind tags a Block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockBlank     BlockKind = "blank"
)

// Block is one structural unit of a Document.
type Block struct {
	Kind BlockKind `json:"kind" yaml:"kind"`

	// Level is the heading level (1 and up); zero for other kinds.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`

	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Heading returns a heading block.
func Heading(level int, text string) Block {
	return Block{Kind: BlockHeading, Level: level, Text: text}
}

// Paragraph returns a body paragraph block.
func Paragraph(text string) Block {
	return Block{Kind: BlockParagraph, Text: text}
}

// BlankLine returns a blank separator block.
func BlankLine() Block {
	return Block{Kind: BlockBlank}
}

// Document is an ordered sequence of blocks in source line order.
type Document struct {
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

// Empty reports whether the document has no blocks at all.
func (d Document) Empty() bool {
	return len(d.Blocks) == 0
}

// Count returns the number of blocks of the given kind.
func (d Document) Count(kind BlockKind) int {
	n := 0
	for _, b := range d.Blocks {
		if b.Kind == kind {
			n++
		}
	}
	return n
}
