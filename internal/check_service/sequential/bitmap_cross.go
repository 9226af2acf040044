package sequential

import (
	"github.com/AnishMulay/fscheck/internal/check_service"
)

// checkReferencedBlocksMarked: every block an in-use inode references is
// marked allocated in the bitmap.
func checkReferencedBlocksMarked(r *run) *check_service.Violation {
	l := r.l
	var v *check_service.Violation
	for i := uint32(0); i < l.NInodes() && v == nil; i++ {
		in, ok := l.Inode(i)
		if !ok {
			break
		}
		if !in.InUse() {
			continue
		}
		forEachRef(l, &in, func(blk uint32, _ refKind) bool {
			if !l.Allocated(blk) {
				v = check_service.NewViolation(check_service.BlockNotMarkedUsed, int(i), int(blk))
				return false
			}
			return true
		})
	}
	return v
}

// checkMarkedBlocksReferenced: every data block marked allocated is
// referenced by some in-use inode. Metadata blocks are not considered.
func checkMarkedBlocksReferenced(r *run) *check_service.Violation {
	l := r.l
	inUse := newBlockSet(l.Super.Size)
	for i := uint32(0); i < l.NInodes(); i++ {
		in, ok := l.Inode(i)
		if !ok {
			break
		}
		if !in.InUse() {
			continue
		}
		forEachRef(l, &in, func(blk uint32, _ refKind) bool {
			inUse.add(blk)
			return true
		})
	}

	for b := l.DataStart; b < l.Super.Size; b++ {
		if l.Allocated(b) && !inUse.has(b) {
			return check_service.NewViolation(check_service.BlockMarkedUsedButUnreferenced, -1, int(b))
		}
	}
	return nil
}

// checkDuplicateAddresses: no block is reached twice as a direct pointer
// (indirect blocks count as direct), and no block is reached twice as an
// indirect entry.
func checkDuplicateAddresses(r *run) *check_service.Violation {
	l := r.l
	direct := newBlockSet(l.Super.Size)
	indirect := newBlockSet(l.Super.Size)

	var v *check_service.Violation
	for i := uint32(0); i < l.NInodes() && v == nil; i++ {
		in, ok := l.Inode(i)
		if !ok {
			break
		}
		if !in.InUse() {
			continue
		}
		forEachRef(l, &in, func(blk uint32, kind refKind) bool {
			if kind == refIndirectEntry {
				if !indirect.add(blk) && l.ValidBlock(blk) {
					v = check_service.NewViolation(check_service.DuplicateIndirectAddress, int(i), int(blk))
					return false
				}
				return true
			}
			if !direct.add(blk) && l.ValidBlock(blk) {
				v = check_service.NewViolation(check_service.DuplicateDirectAddress, int(i), int(blk))
				return false
			}
			return true
		})
	}
	return v
}
