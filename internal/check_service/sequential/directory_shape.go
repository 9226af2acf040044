package sequential

import (
	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/layout"
)

// scanDotEntries looks through the direct blocks of a directory for its "."
// and ".." entries. Indirect blocks are not searched.
func scanDotEntries(l *layout.Layout, in *layout.Inode, dotOK, dotDotOK func(inum uint32) bool) (dot, dotDot bool) {
	for _, blk := range in.Direct() {
		if blk == 0 {
			continue
		}
		entries, ok := l.Dirents(blk)
		if !ok {
			continue
		}
		for i := range entries {
			d := &entries[i]
			if d.IsDot() && dotOK(uint32(d.Inum)) {
				dot = true
			}
			if d.IsDotDot() && dotDotOK(uint32(d.Inum)) {
				dotDot = true
			}
			if dot && dotDot {
				return
			}
		}
	}
	return
}

// checkRootDirectory: inode 1 is a directory whose "." and ".." both point
// back at inode 1.
func checkRootDirectory(r *run) *check_service.Violation {
	root, ok := r.l.Inode(layout.RootInode)
	if !ok || root.Type != layout.TypeDir {
		return check_service.NewViolation(check_service.RootDirectoryMissing, layout.RootInode, -1)
	}

	isRoot := func(inum uint32) bool { return inum == layout.RootInode }
	if dot, dotDot := scanDotEntries(r.l, &root, isRoot, isRoot); !dot || !dotDot {
		return check_service.NewViolation(check_service.RootDirectoryMissing, layout.RootInode, -1)
	}
	return nil
}

// checkDirectoryFormat: each directory has a "." naming itself and a "..".
func checkDirectoryFormat(r *run) *check_service.Violation {
	anyInode := func(uint32) bool { return true }
	for i := uint32(1); i < r.l.NInodes(); i++ {
		in, ok := r.l.Inode(i)
		if !ok {
			break
		}
		if in.Type != layout.TypeDir {
			continue
		}

		self := func(inum uint32) bool { return inum == i }
		if dot, dotDot := scanDotEntries(r.l, &in, self, anyInode); !dot || !dotDot {
			return check_service.NewViolation(check_service.MalformedDirectory, int(i), -1)
		}
	}
	return nil
}
