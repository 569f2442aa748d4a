// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cfbtest writes small compound files for tests. Version 3 files use
// 512-byte sectors and version 4 files 4096-byte sectors. Streams shorter
// than 4096 bytes are stored in the mini stream, longer ones in regular
// sectors, so both chain kinds get exercised.
package cfbtest

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

const (
	miniSize = 64
	cutoff   = 4096

	endOfChain = 0xFFFFFFFE
	freeSect   = 0xFFFFFFFF
	fatSect    = 0xFFFFFFFD
	noStream   = 0xFFFFFFFF
)

// File is one stream to place in the container. Intermediate path segments
// become storages.
type File struct {
	Path []string
	Data []byte
}

// Image is a built container plus the layout details tests need to corrupt
// it on purpose.
type Image struct {
	Data []byte

	sectorSize     int
	dirStart       uint32
	fatSectors     []uint32
	miniFATSectors []uint32
	streams        map[string]location
	dirIndex       map[string]int
}

type location struct {
	start uint32
	mini  bool
}

type node struct {
	name     string
	typ      uint8
	data     []byte
	children []*node
	right    *node

	key   string
	index int
	start uint32
}

// UTF16LE encodes s the way HWP stores text runs.
func UTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}

// Build lays out files in a fresh version 3 container. Entries keep the
// order in which they were given.
func Build(files ...File) *Image {
	return BuildVersion(3, files...)
}

// BuildVersion is Build for a given major version, 3 or 4.
func BuildVersion(version int, files ...File) *Image {
	sectorSize := 512
	if version == 4 {
		sectorSize = 4096
	}
	perFAT := sectorSize / 4
	dirPerSector := sectorSize / 128

	root := &node{name: "Root Entry", typ: 5}
	for _, f := range files {
		parent := root
		for _, seg := range f.Path[:len(f.Path)-1] {
			parent = parent.storage(seg)
		}
		parent.children = append(parent.children, &node{
			name: f.Path[len(f.Path)-1],
			typ:  2,
			data: f.Data,
		})
	}

	// Flatten in creation order; index 0 is the root.
	var nodes []*node
	var flatten func(n *node)
	flatten = func(n *node) {
		n.index = len(nodes)
		nodes = append(nodes, n)
		for i, ch := range n.children {
			if i+1 < len(n.children) {
				ch.right = n.children[i+1]
			}
			flatten(ch)
		}
	}
	flatten(root)

	img := &Image{
		sectorSize: sectorSize,
		streams:    make(map[string]location),
		dirIndex:   map[string]int{"": 0},
	}

	// Mini stream placement.
	var ministream []byte
	var miniFAT []uint32
	var big []*node
	var paths func(n *node, prefix []string)
	paths = func(n *node, prefix []string) {
		for _, ch := range n.children {
			p := append(append([]string{}, prefix...), ch.name)
			ch.key = strings.Join(p, "/")
			img.dirIndex[ch.key] = ch.index
			switch {
			case ch.typ != 2:
				paths(ch, p)
			case len(ch.data) == 0:
				ch.start = endOfChain
			case len(ch.data) < cutoff:
				ch.start = uint32(len(miniFAT))
				img.streams[ch.key] = location{start: ch.start, mini: true}
				count := ceil(len(ch.data), miniSize)
				for i := 0; i < count; i++ {
					next := uint32(len(miniFAT) + 1)
					if i == count-1 {
						next = endOfChain
					}
					miniFAT = append(miniFAT, next)
				}
				ministream = append(ministream, pad(ch.data, miniSize)...)
			default:
				big = append(big, ch)
			}
		}
	}
	paths(root, nil)

	dirSectors := ceil(len(nodes), dirPerSector)
	miniFATSectors := ceil(len(miniFAT), perFAT)
	ministreamSectors := ceil(len(ministream), sectorSize)
	bigSectors := 0
	for _, n := range big {
		bigSectors += ceil(len(n.data), sectorSize)
	}
	nonFAT := dirSectors + miniFATSectors + ministreamSectors + bigSectors
	fatCount := 1
	for ceil(nonFAT+fatCount, perFAT) > fatCount {
		fatCount++
	}
	total := fatCount + nonFAT

	fat := make([]uint32, fatCount*perFAT)
	for i := range fat {
		fat[i] = freeSect
	}
	next := uint32(0)
	alloc := func(count int) uint32 {
		if count == 0 {
			return endOfChain
		}
		start := next
		for i := 0; i < count; i++ {
			if i == count-1 {
				fat[next] = endOfChain
			} else {
				fat[next] = next + 1
			}
			next++
		}
		return start
	}

	for i := 0; i < fatCount; i++ {
		fat[next] = fatSect
		img.fatSectors = append(img.fatSectors, next)
		next++
	}
	dirStart := alloc(dirSectors)
	img.dirStart = dirStart
	miniFATStart := alloc(miniFATSectors)
	for i := 0; i < miniFATSectors; i++ {
		img.miniFATSectors = append(img.miniFATSectors, miniFATStart+uint32(i))
	}
	ministreamStart := alloc(ministreamSectors)
	root.start = ministreamStart
	for _, n := range big {
		n.start = alloc(ceil(len(n.data), sectorSize))
		img.streams[n.key] = location{start: n.start}
	}

	out := make([]byte, (total+1)*sectorSize)
	writeHeader(out, version, fatCount, dirSectors, dirStart, miniFATStart, miniFATSectors)

	for i, s := range img.fatSectors {
		off := img.sectorOffset(s)
		for j := 0; j < perFAT; j++ {
			binary.LittleEndian.PutUint32(out[off+4*j:], fat[i*perFAT+j])
		}
	}

	dir := make([]byte, dirSectors*sectorSize)
	for i := len(nodes); i < dirSectors*dirPerSector; i++ {
		e := dir[i*128:]
		binary.LittleEndian.PutUint32(e[68:], noStream)
		binary.LittleEndian.PutUint32(e[72:], noStream)
		binary.LittleEndian.PutUint32(e[76:], noStream)
	}
	for _, n := range nodes {
		writeDirEntry(dir[n.index*128:], n, int64(len(ministream)))
	}
	copy(out[img.sectorOffset(dirStart):], dir)

	mf := make([]byte, miniFATSectors*sectorSize)
	for i := range mf {
		mf[i] = 0xFF
	}
	for i, v := range miniFAT {
		binary.LittleEndian.PutUint32(mf[4*i:], v)
	}
	if miniFATSectors > 0 {
		copy(out[img.sectorOffset(miniFATStart):], mf)
	}
	if ministreamSectors > 0 {
		copy(out[img.sectorOffset(ministreamStart):], ministream)
	}
	for _, n := range big {
		copy(out[img.sectorOffset(n.start):], n.data)
	}

	img.Data = out
	return img
}

// BreakChain marks the first sector of the stream at path as free, so
// following its chain fails. It panics if path names no stored stream.
func (img *Image) BreakChain(path ...string) {
	loc, ok := img.streams[strings.Join(path, "/")]
	if !ok {
		panic("cfbtest: no stored stream " + strings.Join(path, "/"))
	}
	table := img.fatSectors
	if loc.mini {
		table = img.miniFATSectors
	}
	perFAT := uint32(img.sectorSize / 4)
	off := img.sectorOffset(table[loc.start/perFAT]) + 4*int(loc.start%perFAT)
	binary.LittleEndian.PutUint32(img.Data[off:], freeSect)
}

// SetSize overwrites the 64-bit size field of the directory entry at path.
// An empty path names the root entry, whose size is the mini stream length.
// It panics if path names no entry.
func (img *Image) SetSize(size uint64, path ...string) {
	i, ok := img.dirIndex[strings.Join(path, "/")]
	if !ok {
		panic("cfbtest: no entry " + strings.Join(path, "/"))
	}
	// Directory sectors are allocated contiguously.
	off := img.sectorOffset(img.dirStart) + i*128 + 120
	binary.LittleEndian.PutUint64(img.Data[off:], size)
}

func (n *node) storage(name string) *node {
	for _, ch := range n.children {
		if ch.name == name && ch.typ == 1 {
			return ch
		}
	}
	st := &node{name: name, typ: 1}
	n.children = append(n.children, st)
	return st
}

func writeHeader(out []byte, version, fatCount, dirSectors int, dirStart, miniFATStart uint32, miniFATSectors int) {
	copy(out, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	binary.LittleEndian.PutUint16(out[24:], 0x003E)
	binary.LittleEndian.PutUint16(out[26:], uint16(version))
	binary.LittleEndian.PutUint16(out[28:], 0xFFFE)
	binary.LittleEndian.PutUint16(out[32:], 6)
	if version == 4 {
		binary.LittleEndian.PutUint16(out[30:], 12)
		binary.LittleEndian.PutUint32(out[40:], uint32(dirSectors))
	} else {
		binary.LittleEndian.PutUint16(out[30:], 9)
	}
	binary.LittleEndian.PutUint32(out[44:], uint32(fatCount))
	binary.LittleEndian.PutUint32(out[48:], dirStart)
	binary.LittleEndian.PutUint32(out[56:], cutoff)
	binary.LittleEndian.PutUint32(out[60:], miniFATStart)
	binary.LittleEndian.PutUint32(out[64:], uint32(miniFATSectors))
	binary.LittleEndian.PutUint32(out[68:], endOfChain)
	for i := 0; i < 109; i++ {
		v := uint32(freeSect)
		if i < fatCount {
			v = uint32(i)
		}
		binary.LittleEndian.PutUint32(out[76+4*i:], v)
	}
}

func writeDirEntry(e []byte, n *node, ministreamLen int64) {
	name := utf16.Encode([]rune(n.name))
	for i, u := range name {
		binary.LittleEndian.PutUint16(e[2*i:], u)
	}
	binary.LittleEndian.PutUint16(e[64:], uint16(2*(len(name)+1)))
	e[66] = n.typ
	e[67] = 1 // black

	// Siblings form a right-leaning chain; readers walk it in order.
	binary.LittleEndian.PutUint32(e[68:], noStream)
	binary.LittleEndian.PutUint32(e[72:], noStream)
	binary.LittleEndian.PutUint32(e[76:], noStream)
	if n.right != nil {
		binary.LittleEndian.PutUint32(e[72:], uint32(n.right.index))
	}
	if len(n.children) > 0 {
		binary.LittleEndian.PutUint32(e[76:], uint32(n.children[0].index))
	}

	switch n.typ {
	case 5:
		binary.LittleEndian.PutUint32(e[116:], n.start)
		binary.LittleEndian.PutUint64(e[120:], uint64(ministreamLen))
	case 2:
		binary.LittleEndian.PutUint32(e[116:], n.start)
		binary.LittleEndian.PutUint64(e[120:], uint64(len(n.data)))
	}
}

func (img *Image) sectorOffset(s uint32) int {
	return (int(s) + 1) * img.sectorSize
}

func pad(b []byte, to int) []byte {
	out := make([]byte, ceil(len(b), to)*to)
	copy(out, b)
	return out
}

func ceil(n, d int) int {
	return (n + d - 1) / d
}
