// Package layout decodes the fixed geometry of an xv6 file system image and
// exposes bounds-checked, read-only views over its regions.
//
// An image is laid out as
//
//	| boot | super | inode table ... | bitmap ... | data ... |
//
// with the inode table and bitmap sizes derived from the superblock.
package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/diskfs/go-diskfs/util/bitmap"
	"golang.org/x/exp/constraints"
)

// Superblock is the on-disk record stored at the start of block 1.
type Superblock struct {
	Size    uint32 // total blocks in the image
	NBlocks uint32 // data blocks
	NInodes uint32
	NLog    uint32 // unused by the checker
}

const superblockSize = 16

// Geometry names the rounding rule under which the superblock partitions
// the image.
type Geometry int

const (
	// GeometryCeil sizes the inode table and bitmap by exact ceiling division.
	GeometryCeil Geometry = iota
	// GeometryLegacy matches the stock xv6 mkfs, which always adds one
	// block: ninodes/IPB + 1 and size/BPB + 1.
	GeometryLegacy
)

func (g Geometry) String() string {
	if g == GeometryLegacy {
		return "legacy"
	}
	return "ceil"
}

func ceilDiv[T constraints.Unsigned](n, d T) T {
	return (n + d - 1) / d
}

func (g Geometry) regions(sb Superblock) (inodeBlocks, bitmapBlocks uint64) {
	ninodes, size := uint64(sb.NInodes), uint64(sb.Size)
	if g == GeometryLegacy {
		return ninodes/InodesPerBlock + 1, size/BitsPerBlock + 1
	}
	return ceilDiv(ninodes, uint64(InodesPerBlock)), ceilDiv(size, uint64(BitsPerBlock))
}

// Layout is the immutable image context shared by every check: the raw
// buffer plus the resolved region offsets.
type Layout struct {
	buf    []byte
	bitmap *bitmap.Bitmap

	Super        Superblock
	Geometry     Geometry
	InodeBlocks  uint32
	BitmapBlocks uint32
	BitmapStart  uint32
	DataStart    uint32
}

func decodeSuperblock(b []byte) (Superblock, error) {
	var sb Superblock
	if err := binary.Read(bytes.NewReader(b[:superblockSize]), binary.LittleEndian, &sb); err != nil {
		return Superblock{}, err
	}
	return sb, nil
}

// Resolve reads the superblock out of buf and derives the region layout.
// It fails unless boot + superblock + inode table + bitmap + data blocks add
// up exactly to the declared image size.
func Resolve(buf []byte) (*Layout, error) {
	if len(buf) < (SuperBlock+1)*BlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooSmall, len(buf))
	}

	sb, err := decodeSuperblock(buf[SuperBlock*BlockSize:])
	if err != nil {
		return nil, fmt.Errorf("decode superblock: %w", err)
	}

	for _, g := range []Geometry{GeometryCeil, GeometryLegacy} {
		inodeBlocks, bitmapBlocks := g.regions(sb)
		if InodeStart+inodeBlocks+bitmapBlocks+uint64(sb.NBlocks) != uint64(sb.Size) {
			continue
		}

		if uint64(len(buf)) < uint64(sb.Size)*BlockSize {
			return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrImageTruncated, len(buf), uint64(sb.Size)*BlockSize)
		}

		l := &Layout{
			buf:          buf,
			Super:        sb,
			Geometry:     g,
			InodeBlocks:  uint32(inodeBlocks),
			BitmapBlocks: uint32(bitmapBlocks),
			BitmapStart:  InodeStart + uint32(inodeBlocks),
			DataStart:    InodeStart + uint32(inodeBlocks) + uint32(bitmapBlocks),
		}

		start := int(l.BitmapStart) * BlockSize
		region := buf[start : start+int(l.BitmapBlocks)*BlockSize]
		l.bitmap = bitmap.NewBits(len(region) * 8)
		l.bitmap.FromBytes(region)
		return l, nil
	}

	return nil, fmt.Errorf("%w: size=%d nblocks=%d ninodes=%d",
		ErrLayoutInconsistent, sb.Size, sb.NBlocks, sb.NInodes)
}

// ValidBlock reports whether n names a block inside the image.
func (l *Layout) ValidBlock(n uint32) bool {
	return n < l.Super.Size
}

// NInodes is the capacity of the inode table.
func (l *Layout) NInodes() uint32 {
	return l.Super.NInodes
}

// Block returns the bytes of block n, or false if n is outside the image.
func (l *Layout) Block(n uint32) ([]byte, bool) {
	if !l.ValidBlock(n) {
		return nil, false
	}
	off := uint64(n) * BlockSize
	if off+BlockSize > uint64(len(l.buf)) {
		return nil, false
	}
	return l.buf[off : off+BlockSize], true
}

// Allocated reports the bitmap bit for block b. Blocks beyond the image read
// as free.
func (l *Layout) Allocated(b uint32) bool {
	if !l.ValidBlock(b) {
		return false
	}
	set, err := l.bitmap.IsSet(int(b))
	return err == nil && set
}

// Describe writes the superblock and derived geometry in the style of
// fsck's superblock listing.
func (l *Layout) Describe(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"size          = %d\n"+
			"nblocks       = %d\n"+
			"ninodes       = %d\n"+
			"nlog          = %d\n"+
			"inode blocks  = %d (start 2)\n"+
			"bitmap blocks = %d (start %d)\n"+
			"first data    = %d\n"+
			"geometry      = %s\n",
		l.Super.Size, l.Super.NBlocks, l.Super.NInodes, l.Super.NLog,
		l.InodeBlocks, l.BitmapBlocks, l.BitmapStart, l.DataStart, l.Geometry)
	return err
}
