// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cfb reads Compound File Binary containers (OLE2 structured
// storage), the outer format of HWP v5, legacy Office documents and MSI
// packages. It walks the directory tree and follows FAT and mini FAT sector
// chains directly over an in-memory buffer.
package cfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Signature is the magic value at offset 0 of every compound file.
var Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const (
	headerSize   = 512
	dirEntrySize = 128
	headerDIFAT  = 109

	// Special sector numbers.
	maxRegSect = 0xFFFFFFFA
	endOfChain = 0xFFFFFFFE
	freeSect   = 0xFFFFFFFF

	noStream = 0xFFFFFFFF

	byteOrderMark = 0xFFFE
)

// header mirrors the fixed fields of the 512-byte compound file header.
type header struct {
	MajorVersion     uint16
	ByteOrder        uint16
	SectorShift      uint16
	MiniSectorShift  uint16
	NumDirSectors    uint32
	NumFATSectors    uint32
	FirstDirSector   uint32
	MiniStreamCutoff uint32
	FirstMiniFAT     uint32
	NumMiniFAT       uint32
	FirstDIFAT       uint32
	NumDIFAT         uint32
	DIFAT            [headerDIFAT]uint32
}

// Container is an opened compound file. It owns a private copy of the bytes
// it was opened from.
type Container struct {
	buf        []byte
	hdr        header
	sectorSize int
	miniSize   int
	cutoff     int64

	fat     []uint32
	miniFAT []uint32

	ministream    []byte
	ministreamErr error

	dir     []dirEntry
	entries []Entry
}

// Open validates raw as a compound file and indexes its directory. It
// returns an error wrapping ErrInvalidContainer when the signature is
// missing or the header, FAT or directory cannot be read.
func Open(raw []byte) (*Container, error) {
	if len(raw) < headerSize || !bytes.Equal(raw[:len(Signature)], Signature) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidContainer)
	}

	c := &Container{buf: bytes.Clone(raw)}
	if err := c.readHeader(); err != nil {
		return nil, err
	}
	if err := c.readFAT(); err != nil {
		return nil, err
	}
	if err := c.readDirectory(); err != nil {
		return nil, err
	}
	c.readMiniFAT()
	if err := c.buildEntries(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) readHeader() error {
	b := c.buf
	h := header{
		MajorVersion:     binary.LittleEndian.Uint16(b[26:]),
		ByteOrder:        binary.LittleEndian.Uint16(b[28:]),
		SectorShift:      binary.LittleEndian.Uint16(b[30:]),
		MiniSectorShift:  binary.LittleEndian.Uint16(b[32:]),
		NumDirSectors:    binary.LittleEndian.Uint32(b[40:]),
		NumFATSectors:    binary.LittleEndian.Uint32(b[44:]),
		FirstDirSector:   binary.LittleEndian.Uint32(b[48:]),
		MiniStreamCutoff: binary.LittleEndian.Uint32(b[56:]),
		FirstMiniFAT:     binary.LittleEndian.Uint32(b[60:]),
		NumMiniFAT:       binary.LittleEndian.Uint32(b[64:]),
		FirstDIFAT:       binary.LittleEndian.Uint32(b[68:]),
		NumDIFAT:         binary.LittleEndian.Uint32(b[72:]),
	}
	for i := range h.DIFAT {
		h.DIFAT[i] = binary.LittleEndian.Uint32(b[76+4*i:])
	}

	if h.ByteOrder != byteOrderMark {
		return fmt.Errorf("%w: byte order %#04x", ErrInvalidContainer, h.ByteOrder)
	}
	switch {
	case h.MajorVersion == 3 && h.SectorShift == 9:
	case h.MajorVersion == 4 && h.SectorShift == 12:
	default:
		return fmt.Errorf("%w: version %d with sector shift %d", ErrInvalidContainer, h.MajorVersion, h.SectorShift)
	}
	if h.MiniSectorShift != 6 {
		return fmt.Errorf("%w: mini sector shift %d", ErrInvalidContainer, h.MiniSectorShift)
	}
	if h.NumFATSectors == 0 {
		return fmt.Errorf("%w: no FAT sectors", ErrInvalidContainer)
	}

	// No count can exceed the sectors the file actually holds.
	sectorSize := 1 << h.SectorShift
	avail := uint32((len(b) - 1) / sectorSize)
	for _, f := range []struct {
		name string
		n    uint32
	}{
		{"FAT", h.NumFATSectors},
		{"DIFAT", h.NumDIFAT},
		{"mini FAT", h.NumMiniFAT},
		{"directory", h.NumDirSectors},
	} {
		if f.n > avail {
			return fmt.Errorf("%w: %d %s sectors in a file of %d sectors", ErrInvalidContainer, f.n, f.name, avail)
		}
	}

	c.hdr = h
	c.sectorSize = sectorSize
	c.miniSize = 1 << h.MiniSectorShift
	c.cutoff = int64(h.MiniStreamCutoff)
	return nil
}

// sector returns the bytes of sector n. The final sector of a file may be
// short when the writer did not pad it.
func (c *Container) sector(n uint32) ([]byte, error) {
	if n > maxRegSect {
		return nil, fmt.Errorf("sector %#x is not a regular sector", n)
	}
	off := (int64(n) + 1) * int64(c.sectorSize)
	if off >= int64(len(c.buf)) {
		return nil, fmt.Errorf("sector %d beyond end of file", n)
	}
	end := min(off+int64(c.sectorSize), int64(len(c.buf)))
	return c.buf[off:end], nil
}

func (c *Container) readFAT() error {
	want := int(c.hdr.NumFATSectors)
	ids := make([]uint32, 0, want)
	for _, s := range c.hdr.DIFAT {
		if len(ids) == want {
			break
		}
		if s == freeSect {
			continue
		}
		ids = append(ids, s)
	}

	perSector := c.sectorSize/4 - 1
	next := c.hdr.FirstDIFAT
	for i := 0; i < int(c.hdr.NumDIFAT) && len(ids) < want; i++ {
		if next == endOfChain || next == freeSect {
			break
		}
		sec, err := c.sector(next)
		if err != nil {
			return fmt.Errorf("%w: DIFAT: %v", ErrInvalidContainer, err)
		}
		if len(sec) < c.sectorSize {
			return fmt.Errorf("%w: DIFAT sector %d truncated", ErrInvalidContainer, next)
		}
		for j := 0; j < perSector && len(ids) < want; j++ {
			s := binary.LittleEndian.Uint32(sec[4*j:])
			if s != freeSect {
				ids = append(ids, s)
			}
		}
		next = binary.LittleEndian.Uint32(sec[4*perSector:])
	}
	if len(ids) < want {
		return fmt.Errorf("%w: found %d of %d FAT sectors", ErrInvalidContainer, len(ids), want)
	}

	c.fat = make([]uint32, 0, want*c.sectorSize/4)
	for _, id := range ids {
		sec, err := c.sector(id)
		if err != nil {
			return fmt.Errorf("%w: FAT: %v", ErrInvalidContainer, err)
		}
		c.fat = appendUint32s(c.fat, sec)
	}
	return nil
}

// chain follows table from start and returns the visited sector numbers.
// It fails on out-of-range links and on cycles.
func chain(table []uint32, start uint32) ([]uint32, error) {
	var out []uint32
	seen := make(map[uint32]struct{})
	for s := start; s != endOfChain; s = table[s] {
		if int64(s) >= int64(len(table)) {
			return out, fmt.Errorf("chain link %#x out of range after %d sectors", s, len(out))
		}
		if _, dup := seen[s]; dup {
			return out, fmt.Errorf("chain loops at sector %d", s)
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// readChain concatenates the regular sectors of the chain starting at start.
func (c *Container) readChain(start uint32) ([]byte, error) {
	ids, err := chain(c.fat, start)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, id := range ids {
		sec, err := c.sector(id)
		if err != nil {
			return nil, err
		}
		buf.Write(sec)
	}
	return buf.Bytes(), nil
}

// readMiniFAT loads the mini FAT and the mini stream. Failures are kept
// and reported by ReadEntry for the streams that live in the mini stream.
func (c *Container) readMiniFAT() {
	if c.hdr.NumMiniFAT > 0 && c.hdr.FirstMiniFAT != endOfChain {
		data, err := c.readChain(c.hdr.FirstMiniFAT)
		if err != nil {
			c.ministreamErr = fmt.Errorf("mini FAT: %w", err)
			return
		}
		c.miniFAT = appendUint32s(nil, data)
	}

	root := c.dir[0]
	if root.size == 0 || root.start == endOfChain {
		return
	}
	if err := c.checkSize(root.size); err != nil {
		c.ministreamErr = fmt.Errorf("mini stream: %w", err)
		return
	}
	data, err := c.readChain(root.start)
	if err != nil {
		c.ministreamErr = fmt.Errorf("mini stream: %w", err)
		return
	}
	if int64(len(data)) > root.size {
		data = data[:root.size]
	}
	c.ministream = data
}

// ReadEntry returns a fresh copy of the stream payload of e. It fails with
// an *EntryError wrapping ErrEntryRead when the chain is truncated or
// inconsistent, or when e is a storage.
func (c *Container) ReadEntry(e Entry) ([]byte, error) {
	fail := func(err error) ([]byte, error) {
		return nil, &EntryError{Path: e.Path, Err: err}
	}
	if !e.Stream {
		return fail(fmt.Errorf("%s is a storage, not a stream", e.Name()))
	}
	if err := c.checkSize(e.Size); err != nil {
		return fail(err)
	}
	if e.Size == 0 {
		return []byte{}, nil
	}

	var data []byte
	if e.Size < c.cutoff {
		if c.ministreamErr != nil {
			return fail(c.ministreamErr)
		}
		ids, err := chain(c.miniFAT, e.start)
		if err != nil {
			return fail(err)
		}
		data = make([]byte, 0, len(ids)*c.miniSize)
		for _, id := range ids {
			off := int64(id) * int64(c.miniSize)
			if off >= int64(len(c.ministream)) {
				return fail(fmt.Errorf("mini sector %d beyond mini stream", id))
			}
			end := min(off+int64(c.miniSize), int64(len(c.ministream)))
			data = append(data, c.ministream[off:end]...)
		}
	} else {
		var err error
		if data, err = c.readChain(e.start); err != nil {
			return fail(err)
		}
	}

	if int64(len(data)) < e.Size {
		return fail(fmt.Errorf("chain holds %d of %d bytes", len(data), e.Size))
	}
	return bytes.Clone(data[:e.Size]), nil
}

// checkSize rejects stream sizes that are negative once read as int64 or
// that no chain in this file could hold.
func (c *Container) checkSize(size int64) error {
	if size < 0 || size > int64(len(c.buf)) {
		return fmt.Errorf("stream size %d out of range for a %d-byte file", uint64(size), len(c.buf))
	}
	return nil
}

func appendUint32s(dst []uint32, b []byte) []uint32 {
	for i := 0; i+4 <= len(b); i += 4 {
		dst = append(dst, binary.LittleEndian.Uint32(b[i:]))
	}
	return dst
}
