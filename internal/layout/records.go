package layout

import (
	"bytes"
	"encoding/binary"
)

// Inode is the decoded form of one 64-byte dinode record.
type Inode struct {
	Type  InodeType
	Major int16
	Minor int16
	NLink int16
	Size  uint32
	Addrs [NDirect + 1]uint32
}

func (in *Inode) InUse() bool {
	return in.Type != TypeFree
}

// Direct returns the twelve direct block pointers.
func (in *Inode) Direct() []uint32 {
	return in.Addrs[:NDirect]
}

// IndirectBlock returns the indirect pointer; zero means none.
func (in *Inode) IndirectBlock() uint32 {
	return in.Addrs[NDirect]
}

func decodeInode(b []byte) Inode {
	le := binary.LittleEndian
	in := Inode{
		Type:  InodeType(le.Uint16(b[0:])),
		Major: int16(le.Uint16(b[2:])),
		Minor: int16(le.Uint16(b[4:])),
		NLink: int16(le.Uint16(b[6:])),
		Size:  le.Uint32(b[8:]),
	}
	for i := range in.Addrs {
		in.Addrs[i] = le.Uint32(b[12+4*i:])
	}
	return in
}

// Encode writes the 64-byte on-disk form of in into b.
func (in *Inode) Encode(b []byte) {
	le := binary.LittleEndian
	le.PutUint16(b[0:], uint16(in.Type))
	le.PutUint16(b[2:], uint16(in.Major))
	le.PutUint16(b[4:], uint16(in.Minor))
	le.PutUint16(b[6:], uint16(in.NLink))
	le.PutUint32(b[8:], in.Size)
	for i, a := range in.Addrs {
		le.PutUint32(b[12+4*i:], a)
	}
}

// Inode returns inode i of the inode table, or false if i is past its end.
func (l *Layout) Inode(i uint32) (Inode, bool) {
	if i >= l.Super.NInodes {
		return Inode{}, false
	}
	off := uint64(InodeStart)*BlockSize + uint64(i)*InodeSize
	if off+InodeSize > uint64(len(l.buf)) {
		return Inode{}, false
	}
	return decodeInode(l.buf[off : off+InodeSize]), true
}

// Indirect decodes block n as an array of block numbers.
func (l *Layout) Indirect(n uint32) ([]uint32, bool) {
	b, ok := l.Block(n)
	if !ok {
		return nil, false
	}
	entries := make([]uint32, NIndirect)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return entries, true
}

// Dirent is one directory entry: an inode number and a NUL-padded name.
type Dirent struct {
	Inum uint16
	name [DirSiz]byte
}

// Name returns the entry name up to the first NUL byte.
func (d *Dirent) Name() string {
	n := bytes.IndexByte(d.name[:], 0)
	if n < 0 {
		n = DirSiz
	}
	return string(d.name[:n])
}

func (d *Dirent) IsDot() bool {
	return d.Name() == "."
}

func (d *Dirent) IsDotDot() bool {
	return d.Name() == ".."
}

// NewDirent builds an entry, truncating name to DirSiz bytes.
func NewDirent(inum uint16, name string) Dirent {
	d := Dirent{Inum: inum}
	copy(d.name[:], name)
	return d
}

// Encode writes the 16-byte on-disk form of d into b.
func (d *Dirent) Encode(b []byte) {
	binary.LittleEndian.PutUint16(b, d.Inum)
	copy(b[2:DirentSize], d.name[:])
}

// Dirents decodes block n as a directory block.
func (l *Layout) Dirents(n uint32) ([]Dirent, bool) {
	b, ok := l.Block(n)
	if !ok {
		return nil, false
	}
	entries := make([]Dirent, DirentsPerBlock)
	for i := range entries {
		rec := b[i*DirentSize : (i+1)*DirentSize]
		entries[i].Inum = binary.LittleEndian.Uint16(rec)
		copy(entries[i].name[:], rec[2:])
	}
	return entries, true
}
