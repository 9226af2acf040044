package sequential

import (
	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/layout"
	"github.com/AnishMulay/fscheck/internal/log_service"
)

// graphWalker counts, for every inode, the directory entries naming it.
// "." and ".." are not counted. Each directory is expanded at most once, so
// a cyclic image still terminates.
type graphWalker struct {
	r       *run
	refs    []uint32
	visited *blockSet
}

func newGraphWalker(r *run) *graphWalker {
	n := r.l.NInodes()
	return &graphWalker{
		r:       r,
		refs:    make([]uint32, n),
		visited: newBlockSet(n),
	}
}

func (w *graphWalker) walkFromRoot() {
	if w.r.l.NInodes() <= layout.RootInode {
		return
	}
	w.refs[layout.RootInode] = 1
	w.visited.add(layout.RootInode)
	w.walk(layout.RootInode)
}

func (w *graphWalker) walk(dir uint32) {
	l := w.r.l
	in, ok := l.Inode(dir)
	if !ok || in.Type != layout.TypeDir {
		return
	}

	for _, blk := range in.Direct() {
		if blk != 0 {
			w.scan(dir, blk)
		}
	}

	ind := in.IndirectBlock()
	if ind == 0 {
		return
	}
	entries, ok := l.Indirect(ind)
	if !ok {
		return
	}
	for _, blk := range entries {
		if blk != 0 {
			w.scan(dir, blk)
		}
	}
}

func (w *graphWalker) scan(dir, blk uint32) {
	entries, ok := w.r.l.Dirents(blk)
	if !ok {
		w.r.ls.Debug(log_service.LogEvent{
			Message:  "Skipping unreadable directory block",
			Metadata: map[string]any{"runID": w.r.id, "dir": dir, "block": blk},
		})
		return
	}

	for i := range entries {
		d := &entries[i]
		if d.Inum == 0 || d.IsDot() || d.IsDotDot() {
			continue
		}
		inum := uint32(d.Inum)
		if inum >= uint32(len(w.refs)) {
			w.r.ls.Debug(log_service.LogEvent{
				Message:  "Skipping directory entry past the inode table",
				Metadata: map[string]any{"runID": w.r.id, "dir": dir, "name": d.Name(), "inum": inum},
			})
			continue
		}
		w.refs[inum]++
		if w.visited.add(inum) {
			w.walk(inum)
		}
	}
}

// checkDirectoryReferences reconciles directory reference counts with the
// inode table: no orphans, no references to free inodes, exact link counts
// for files and a single parent for directories.
func checkDirectoryReferences(r *run) *check_service.Violation {
	w := newGraphWalker(r)
	w.walkFromRoot()

	l := r.l
	for i := uint32(1); i < l.NInodes(); i++ {
		in, ok := l.Inode(i)
		if !ok {
			break
		}
		refs := w.refs[i]

		if in.InUse() && refs == 0 {
			return check_service.NewViolation(check_service.OrphanInode, int(i), -1)
		}
		if refs > 0 && !in.InUse() {
			return check_service.NewViolation(check_service.DanglingDirectoryReference, int(i), -1)
		}
		if in.Type == layout.TypeFile && int64(refs) != int64(in.NLink) {
			return check_service.NewViolation(check_service.BadLinkCount, int(i), -1)
		}
		if in.Type == layout.TypeDir && refs > 1 {
			return check_service.NewViolation(check_service.DuplicateDirectoryLink, int(i), -1)
		}
	}
	return nil
}
