// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cfb

import (
	"encoding/binary"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Directory object types.
const (
	typeUnused  = 0
	typeStorage = 1
	typeStream  = 2
	typeRoot    = 5
)

type dirEntry struct {
	name    string
	objType uint8
	left    uint32
	right   uint32
	child   uint32
	start   uint32
	size    int64
}

// Entry is one named storage or stream inside a container.
type Entry struct {
	// Path holds the names from the top-level storage down to this entry.
	// The root storage is not part of the path.
	Path []string

	// Size is the stream length in bytes; zero for storages.
	Size int64

	// Stream reports whether the entry carries a byte payload.
	Stream bool

	start uint32
}

// Name returns the last path segment.
func (e Entry) Name() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[len(e.Path)-1]
}

func (c *Container) readDirectory() error {
	data, err := c.readChain(c.hdr.FirstDirSector)
	if err != nil {
		return fmt.Errorf("%w: directory: %v", ErrInvalidContainer, err)
	}
	n := len(data) / dirEntrySize
	if n == 0 {
		return fmt.Errorf("%w: empty directory", ErrInvalidContainer)
	}

	c.dir = make([]dirEntry, n)
	for i := range c.dir {
		c.dir[i] = c.parseDirEntry(data[i*dirEntrySize : (i+1)*dirEntrySize])
	}
	if c.dir[0].objType != typeRoot {
		return fmt.Errorf("%w: first directory entry is not the root storage", ErrInvalidContainer)
	}
	return nil
}

func (c *Container) parseDirEntry(b []byte) dirEntry {
	nameLen := int(binary.LittleEndian.Uint16(b[64:]))
	units := min(max(nameLen/2-1, 0), 32)
	u16 := make([]uint16, units)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[2*i:])
	}

	size := int64(binary.LittleEndian.Uint64(b[120:]))
	if c.hdr.MajorVersion == 3 {
		// Version 3 writers may leave garbage in the high dword.
		size &= 0xFFFFFFFF
	}

	return dirEntry{
		name:    string(utf16.Decode(u16)),
		objType: b[66],
		left:    binary.LittleEndian.Uint32(b[68:]),
		right:   binary.LittleEndian.Uint32(b[72:]),
		child:   binary.LittleEndian.Uint32(b[76:]),
		start:   binary.LittleEndian.Uint32(b[116:]),
		size:    size,
	}
}

// buildEntries walks the directory tree once. Each storage's children form
// a red-black tree keyed by name; an in-order walk of that tree gives the
// container-native order, and a storage's children follow the storage.
func (c *Container) buildEntries() error {
	seen := make(map[uint32]bool)

	var walk func(id uint32, parent []string) error
	walk = func(id uint32, parent []string) error {
		if id == noStream {
			return nil
		}
		if int(id) >= len(c.dir) {
			return fmt.Errorf("%w: directory link %d out of range", ErrInvalidContainer, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: directory loops at entry %d", ErrInvalidContainer, id)
		}
		seen[id] = true

		d := c.dir[id]
		if err := walk(d.left, parent); err != nil {
			return err
		}

		switch d.objType {
		case typeStorage, typeStream:
			path := append(slices.Clone(parent), d.name)
			e := Entry{Path: path, Stream: d.objType == typeStream, start: d.start}
			if e.Stream {
				e.Size = d.size
			}
			c.entries = append(c.entries, e)
			if d.objType == typeStorage {
				if err := walk(d.child, path); err != nil {
					return err
				}
			}
		case typeUnused:
		default:
			return fmt.Errorf("%w: entry %d has object type %d", ErrInvalidContainer, id, d.objType)
		}

		return walk(d.right, parent)
	}

	seen[0] = true
	return walk(c.dir[0].child, nil)
}

// Entries lists every storage and stream in container-native order. The
// order reflects the directory layout, not document order.
func (c *Container) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		e.Path = slices.Clone(e.Path)
		out[i] = e
	}
	return out
}

// Streams returns the stream entries whose path starts with prefix.
func (c *Container) Streams(prefix ...string) []Entry {
	var out []Entry
	for _, e := range c.Entries() {
		if e.Stream && len(e.Path) >= len(prefix) && slices.Equal(e.Path[:len(prefix)], prefix) {
			out = append(out, e)
		}
	}
	return out
}
