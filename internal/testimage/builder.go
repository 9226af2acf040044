// Package testimage builds small xv6 file system images in memory. It plays
// the role of xv6's mkfs for test suites: New produces a consistent image
// holding only the root directory, and the remaining methods either grow it
// consistently (Mkdir, CreateFile, Link) or corrupt it on purpose.
//
// Builders panic on misuse, such as running out of inodes or data blocks.
package testimage

import (
	"encoding/binary"
	"fmt"

	"github.com/AnishMulay/fscheck/internal/layout"
)

type Builder struct {
	buf []byte

	size         uint32
	ninodes      uint32
	inodeBlocks  uint32
	bitmapBlocks uint32
	dataStart    uint32

	nextBlock uint32
	nextInode uint32
}

// New returns a builder for an image of size blocks with room for ninodes
// inodes, laid out with exact ceiling division.
func New(size, ninodes uint32) *Builder {
	return newBuilder(size, ninodes, layout.GeometryCeil)
}

// NewLegacy lays the image out the way the stock xv6 mkfs does, with one
// extra inode block and bitmap block.
func NewLegacy(size, ninodes uint32) *Builder {
	return newBuilder(size, ninodes, layout.GeometryLegacy)
}

func newBuilder(size, ninodes uint32, g layout.Geometry) *Builder {
	b := &Builder{
		buf:     make([]byte, int(size)*layout.BlockSize),
		size:    size,
		ninodes: ninodes,
	}
	if g == layout.GeometryLegacy {
		b.inodeBlocks = ninodes/layout.InodesPerBlock + 1
		b.bitmapBlocks = size/layout.BitsPerBlock + 1
	} else {
		b.inodeBlocks = (ninodes + layout.InodesPerBlock - 1) / layout.InodesPerBlock
		b.bitmapBlocks = (size + layout.BitsPerBlock - 1) / layout.BitsPerBlock
	}
	b.dataStart = layout.InodeStart + b.inodeBlocks + b.bitmapBlocks
	if b.dataStart >= size {
		panic(fmt.Sprintf("testimage: %d blocks cannot hold %d inodes and any data", size, ninodes))
	}
	b.nextBlock = b.dataStart
	b.nextInode = layout.RootInode + 1

	b.SetSuperblock(layout.Superblock{Size: size, NBlocks: size - b.dataStart, NInodes: ninodes})
	for blk := uint32(0); blk < b.dataStart; blk++ {
		b.SetAllocated(blk, true)
	}

	root := layout.Inode{Type: layout.TypeDir, NLink: 1}
	b.SetInode(layout.RootInode, root)
	blk := b.AllocBlock()
	root.Addrs[0] = blk
	root.Size = layout.BlockSize
	b.SetInode(layout.RootInode, root)
	b.SetDirent(blk, 0, layout.NewDirent(layout.RootInode, "."))
	b.SetDirent(blk, 1, layout.NewDirent(layout.RootInode, ".."))
	return b
}

// Bytes returns a copy of the image built so far.
func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b *Builder) DataStart() uint32 { return b.dataStart }
func (b *Builder) Size() uint32      { return b.size }

func (b *Builder) SetSuperblock(sb layout.Superblock) {
	off := layout.SuperBlock * layout.BlockSize
	le := binary.LittleEndian
	le.PutUint32(b.buf[off:], sb.Size)
	le.PutUint32(b.buf[off+4:], sb.NBlocks)
	le.PutUint32(b.buf[off+8:], sb.NInodes)
	le.PutUint32(b.buf[off+12:], sb.NLog)
}

// SetAllocated sets or clears the bitmap bit of block blk.
func (b *Builder) SetAllocated(blk uint32, used bool) {
	off := int(layout.InodeStart+b.inodeBlocks)*layout.BlockSize + int(blk/8)
	mask := byte(1) << (blk % 8)
	if used {
		b.buf[off] |= mask
	} else {
		b.buf[off] &^= mask
	}
}

// AllocBlock hands out the next free data block and marks it allocated.
func (b *Builder) AllocBlock() uint32 {
	if b.nextBlock >= b.size {
		panic("testimage: out of data blocks")
	}
	blk := b.nextBlock
	b.nextBlock++
	b.SetAllocated(blk, true)
	return blk
}

func (b *Builder) inodeOffset(inum uint32) int {
	return layout.InodeStart*layout.BlockSize + int(inum)*layout.InodeSize
}

func (b *Builder) Inode(inum uint32) layout.Inode {
	off := b.inodeOffset(inum)
	var in layout.Inode
	le := binary.LittleEndian
	in.Type = layout.InodeType(le.Uint16(b.buf[off:]))
	in.Major = int16(le.Uint16(b.buf[off+2:]))
	in.Minor = int16(le.Uint16(b.buf[off+4:]))
	in.NLink = int16(le.Uint16(b.buf[off+6:]))
	in.Size = le.Uint32(b.buf[off+8:])
	for i := range in.Addrs {
		in.Addrs[i] = le.Uint32(b.buf[off+12+4*i:])
	}
	return in
}

func (b *Builder) SetInode(inum uint32, in layout.Inode) {
	off := b.inodeOffset(inum)
	in.Encode(b.buf[off : off+layout.InodeSize])
}

// UpdateInode applies fn to inode inum in place.
func (b *Builder) UpdateInode(inum uint32, fn func(in *layout.Inode)) {
	in := b.Inode(inum)
	fn(&in)
	b.SetInode(inum, in)
}

// AllocInode reserves the next unused inode number with the given type.
func (b *Builder) AllocInode(t layout.InodeType) uint32 {
	if b.nextInode >= b.ninodes {
		panic("testimage: out of inodes")
	}
	inum := b.nextInode
	b.nextInode++
	b.SetInode(inum, layout.Inode{Type: t, NLink: 1})
	return inum
}

func (b *Builder) SetDirent(blk uint32, slot int, d layout.Dirent) {
	off := int(blk)*layout.BlockSize + slot*layout.DirentSize
	d.Encode(b.buf[off : off+layout.DirentSize])
}

// SetWord overwrites the idx'th 32-bit word of block blk, which is how
// indirect block entries are stored.
func (b *Builder) SetWord(blk uint32, idx int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[int(blk)*layout.BlockSize+4*idx:], v)
}

// AddEntry appends a directory entry to dir without touching link counts,
// growing the directory by one direct block when every slot is taken.
func (b *Builder) AddEntry(dir uint32, name string, inum uint32) {
	in := b.Inode(dir)
	for i, blk := range in.Direct() {
		if blk == 0 {
			blk = b.AllocBlock()
			in.Addrs[i] = blk
			in.Size += layout.BlockSize
			b.SetInode(dir, in)
		}
		base := int(blk) * layout.BlockSize
		for slot := 0; slot < layout.DirentsPerBlock; slot++ {
			off := base + slot*layout.DirentSize
			if binary.LittleEndian.Uint16(b.buf[off:]) == 0 && b.buf[off+2] == 0 {
				b.SetDirent(blk, slot, layout.NewDirent(uint16(inum), name))
				return
			}
		}
	}
	panic(fmt.Sprintf("testimage: directory %d is full", dir))
}

// Mkdir creates a directory under parent with its own . and .. entries.
func (b *Builder) Mkdir(parent uint32, name string) uint32 {
	inum := b.AllocInode(layout.TypeDir)
	blk := b.AllocBlock()
	b.UpdateInode(inum, func(in *layout.Inode) {
		in.Addrs[0] = blk
		in.Size = layout.BlockSize
	})
	b.SetDirent(blk, 0, layout.NewDirent(uint16(inum), "."))
	b.SetDirent(blk, 1, layout.NewDirent(uint16(parent), ".."))
	b.AddEntry(parent, name, inum)
	return inum
}

// CreateFile creates a regular file under parent owning nblocks data
// blocks, spilling into an indirect block after the twelfth.
func (b *Builder) CreateFile(parent uint32, name string, nblocks int) uint32 {
	if nblocks > layout.NDirect+layout.NIndirect {
		panic("testimage: file too large")
	}
	inum := b.AllocInode(layout.TypeFile)
	in := b.Inode(inum)
	for i := 0; i < nblocks && i < layout.NDirect; i++ {
		in.Addrs[i] = b.AllocBlock()
	}
	if nblocks > layout.NDirect {
		ind := b.AllocBlock()
		in.Addrs[layout.NDirect] = ind
		for i := 0; i < nblocks-layout.NDirect; i++ {
			b.SetWord(ind, i, b.AllocBlock())
		}
	}
	in.Size = uint32(nblocks) * layout.BlockSize
	b.SetInode(inum, in)
	b.AddEntry(parent, name, inum)
	return inum
}

// CreateDevice creates a device inode under parent.
func (b *Builder) CreateDevice(parent uint32, name string, major, minor int16) uint32 {
	inum := b.AllocInode(layout.TypeDevice)
	b.UpdateInode(inum, func(in *layout.Inode) {
		in.Major = major
		in.Minor = minor
	})
	b.AddEntry(parent, name, inum)
	return inum
}

// Link adds a hard link to a file and bumps its link count.
func (b *Builder) Link(parent uint32, name string, inum uint32) {
	b.AddEntry(parent, name, inum)
	b.UpdateInode(inum, func(in *layout.Inode) { in.NLink++ })
}
