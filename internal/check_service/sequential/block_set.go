package sequential

import "github.com/diskfs/go-diskfs/util/bitmap"

// blockSet is a fixed-capacity set of small unsigned integers (block or
// inode numbers) kept as a bitmap.
type blockSet struct {
	bits *bitmap.Bitmap
	n    uint32
}

func newBlockSet(n uint32) *blockSet {
	// round up so the last partial byte is addressable
	return &blockSet{bits: bitmap.NewBits(int((uint64(n) + 7) / 8 * 8)), n: n}
}

func (s *blockSet) has(i uint32) bool {
	if i >= s.n {
		return false
	}
	set, err := s.bits.IsSet(int(i))
	return err == nil && set
}

// add inserts i and reports whether it was absent. Values past the
// capacity are never stored.
func (s *blockSet) add(i uint32) bool {
	if i >= s.n || s.has(i) {
		return false
	}
	return s.bits.Set(int(i)) == nil
}
