package sequential

import (
	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/layout"
)

// checkInodeTypes: every inode slot is free or one of dir, file, device.
func checkInodeTypes(r *run) *check_service.Violation {
	for i := uint32(0); i < r.l.NInodes(); i++ {
		in, ok := r.l.Inode(i)
		if !ok {
			break
		}
		if !in.Type.Valid() {
			return check_service.NewViolation(check_service.BadInodeType, int(i), -1)
		}
	}
	return nil
}

// checkBlockAddresses: every non-zero pointer of an in-use inode, and every
// non-zero entry of its indirect block, names a block inside the image.
func checkBlockAddresses(r *run) *check_service.Violation {
	l := r.l
	for i := uint32(0); i < l.NInodes(); i++ {
		in, ok := l.Inode(i)
		if !ok {
			break
		}
		if !in.InUse() {
			continue
		}

		for _, blk := range in.Direct() {
			if blk != 0 && !l.ValidBlock(blk) {
				return check_service.NewViolation(check_service.BadDirectAddress, int(i), int(blk))
			}
		}

		ind := in.IndirectBlock()
		if ind == 0 {
			continue
		}
		entries, ok := l.Indirect(ind)
		if !ok {
			return check_service.NewViolation(check_service.BadIndirectAddress, int(i), int(ind))
		}
		for _, blk := range entries {
			if blk != 0 && !l.ValidBlock(blk) {
				return check_service.NewViolation(check_service.BadIndirectAddress, int(i), int(blk))
			}
		}
	}
	return nil
}

type refKind int

const (
	refDirect refKind = iota
	refIndirectBlock
	refIndirectEntry
)

// forEachRef visits the blocks an inode references: non-zero direct
// pointers, then the indirect block itself, then the non-zero entries
// inside it. fn returns false to stop early.
func forEachRef(l *layout.Layout, in *layout.Inode, fn func(blk uint32, kind refKind) bool) bool {
	for _, blk := range in.Direct() {
		if blk == 0 {
			continue
		}
		if !fn(blk, refDirect) {
			return false
		}
	}

	ind := in.IndirectBlock()
	if ind == 0 {
		return true
	}
	if !fn(ind, refIndirectBlock) {
		return false
	}
	entries, ok := l.Indirect(ind)
	if !ok {
		return true
	}
	for _, blk := range entries {
		if blk == 0 {
			continue
		}
		if !fn(blk, refIndirectEntry) {
			return false
		}
	}
	return true
}
