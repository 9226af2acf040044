package sequential

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/layout"
	"github.com/AnishMulay/fscheck/internal/log_service/zaplog"
	"github.com/AnishMulay/fscheck/internal/testimage"
)

// richImage is a consistent image exercising every kind of block reference.
//
//	inode 1  /            block 5
//	inode 2  /a           block 6
//	inode 3  /a/f, /f2    blocks 7-9, nlink 2
//	inode 4  /big         direct 10-21, indirect 22 -> 23, 24
//	inode 5  /console     device
type richImage struct {
	*testimage.Builder
	dir, file, big, dev uint32
}

func newRichImage() *richImage {
	b := testimage.New(64, 10)
	img := &richImage{Builder: b}
	img.dir = b.Mkdir(layout.RootInode, "a")
	img.file = b.CreateFile(img.dir, "f", 3)
	img.big = b.CreateFile(layout.RootInode, "big", layout.NDirect+2)
	img.dev = b.CreateDevice(layout.RootInode, "console", 1, 1)
	b.Link(layout.RootInode, "f2", img.file)
	return img
}

func newTestService() *SequentialCheckService {
	return NewSequentialCheckService(zaplog.NewNopLogService())
}

func TestCheck_ConsistentImages(t *testing.T) {
	tests := []struct {
		name  string
		image func() []byte
	}{
		{
			name:  "root only",
			image: func() []byte { return testimage.New(64, 10).Bytes() },
		},
		{
			name:  "rich tree",
			image: func() []byte { return newRichImage().Bytes() },
		},
		{
			name:  "legacy geometry",
			image: func() []byte { return testimage.NewLegacy(1000, 200).Bytes() },
		},
		{
			name: "free inode with garbage addresses is ignored",
			image: func() []byte {
				img := newRichImage()
				img.SetInode(7, layout.Inode{Type: layout.TypeFree, Addrs: [layout.NDirect + 1]uint32{9999, 0, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1 << 30}})
				return img.Bytes()
			},
		},
		{
			name: "root dot entries found past an empty first slot",
			image: func() []byte {
				b := testimage.New(64, 10)
				b.UpdateInode(layout.RootInode, func(in *layout.Inode) {
					in.Addrs[1] = in.Addrs[0]
					in.Addrs[0] = 0
				})
				return b.Bytes()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestService().Check(context.Background(), tt.image())
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if !report.OK() {
				t.Fatalf("Check() violation = %v", report.Violation)
			}
			if len(report.Passed) != 12 {
				t.Errorf("Passed = %v, want all twelve checks", report.Passed)
			}
			if report.RunID == "" {
				t.Errorf("RunID is empty")
			}
		})
	}
}

func TestCheck_SingleDefects(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(img *richImage)
		want    check_service.Code
	}{
		{
			name:    "inode with unknown type",
			corrupt: func(img *richImage) { img.UpdateInode(img.file, func(in *layout.Inode) { in.Type = 7 }) },
			want:    check_service.BadInodeType,
		},
		{
			name:    "free slot with unknown type",
			corrupt: func(img *richImage) { img.SetInode(9, layout.Inode{Type: 0xffff}) },
			want:    check_service.BadInodeType,
		},
		{
			name:    "direct address equal to image size",
			corrupt: func(img *richImage) { img.UpdateInode(img.file, func(in *layout.Inode) { in.Addrs[0] = 64 }) },
			want:    check_service.BadDirectAddress,
		},
		{
			name:    "direct address far past the image",
			corrupt: func(img *richImage) { img.UpdateInode(img.dir, func(in *layout.Inode) { in.Addrs[5] = 1 << 31 }) },
			want:    check_service.BadDirectAddress,
		},
		{
			name: "indirect pointer out of range",
			corrupt: func(img *richImage) {
				img.UpdateInode(img.big, func(in *layout.Inode) { in.Addrs[layout.NDirect] = 1000 })
			},
			want: check_service.BadIndirectAddress,
		},
		{
			name:    "indirect entry out of range",
			corrupt: func(img *richImage) { img.SetWord(22, 1, 500) },
			want:    check_service.BadIndirectAddress,
		},
		{
			name:    "root is not a directory",
			corrupt: func(img *richImage) { img.UpdateInode(layout.RootInode, func(in *layout.Inode) { in.Type = layout.TypeFile }) },
			want:    check_service.RootDirectoryMissing,
		},
		{
			name:    "root parent is not root",
			corrupt: func(img *richImage) { img.SetDirent(5, 1, layout.NewDirent(uint16(img.dir), "..")) },
			want:    check_service.RootDirectoryMissing,
		},
		{
			name:    "root has no dot entry",
			corrupt: func(img *richImage) { img.SetDirent(5, 0, layout.NewDirent(1, "x")) },
			want:    check_service.RootDirectoryMissing,
		},
		{
			name:    "directory dot names another inode",
			corrupt: func(img *richImage) { img.SetDirent(6, 0, layout.NewDirent(uint16(img.file), ".")) },
			want:    check_service.MalformedDirectory,
		},
		{
			name:    "directory without dotdot",
			corrupt: func(img *richImage) { img.SetDirent(6, 1, layout.NewDirent(0, "")) },
			want:    check_service.MalformedDirectory,
		},
		{
			name:    "directory data block marked free",
			corrupt: func(img *richImage) { img.SetAllocated(6, false) },
			want:    check_service.BlockNotMarkedUsed,
		},
		{
			name:    "indirect block marked free",
			corrupt: func(img *richImage) { img.SetAllocated(22, false) },
			want:    check_service.BlockNotMarkedUsed,
		},
		{
			name:    "indirect entry marked free",
			corrupt: func(img *richImage) { img.SetAllocated(24, false) },
			want:    check_service.BlockNotMarkedUsed,
		},
		{
			name:    "unreferenced data block marked used",
			corrupt: func(img *richImage) { img.SetAllocated(40, true) },
			want:    check_service.BlockMarkedUsedButUnreferenced,
		},
		{
			name:    "last data block marked used",
			corrupt: func(img *richImage) { img.SetAllocated(63, true) },
			want:    check_service.BlockMarkedUsedButUnreferenced,
		},
		{
			name: "direct block shared within one inode",
			corrupt: func(img *richImage) {
				img.UpdateInode(img.file, func(in *layout.Inode) { in.Addrs[1] = in.Addrs[0] })
				img.SetAllocated(8, false)
			},
			want: check_service.DuplicateDirectAddress,
		},
		{
			name: "indirect block reused as a direct block",
			corrupt: func(img *richImage) {
				img.UpdateInode(img.file, func(in *layout.Inode) { in.Addrs[2] = 22 })
				img.SetAllocated(9, false)
			},
			want: check_service.DuplicateDirectAddress,
		},
		{
			name: "indirect entry repeated",
			corrupt: func(img *richImage) {
				img.SetWord(22, 1, 23)
				img.SetAllocated(24, false)
			},
			want: check_service.DuplicateIndirectAddress,
		},
		{
			name:    "inode in use but in no directory",
			corrupt: func(img *richImage) { img.AllocInode(layout.TypeFile) },
			want:    check_service.OrphanInode,
		},
		{
			name:    "directory entry names a free inode",
			corrupt: func(img *richImage) { img.AddEntry(layout.RootInode, "ghost", 7) },
			want:    check_service.DanglingDirectoryReference,
		},
		{
			name:    "file link count above references",
			corrupt: func(img *richImage) { img.UpdateInode(img.big, func(in *layout.Inode) { in.NLink = 2 }) },
			want:    check_service.BadLinkCount,
		},
		{
			name:    "file link count below references",
			corrupt: func(img *richImage) { img.UpdateInode(img.file, func(in *layout.Inode) { in.NLink = 1 }) },
			want:    check_service.BadLinkCount,
		},
		{
			name:    "directory linked twice",
			corrupt: func(img *richImage) { img.AddEntry(layout.RootInode, "alias", img.dir) },
			want:    check_service.DuplicateDirectoryLink,
		},
		{
			name:    "directory cycle back to root",
			corrupt: func(img *richImage) { img.AddEntry(img.dir, "up", layout.RootInode) },
			want:    check_service.DuplicateDirectoryLink,
		},
		{
			name:    "directory containing itself",
			corrupt: func(img *richImage) { img.AddEntry(img.dir, "self", img.dir) },
			want:    check_service.DuplicateDirectoryLink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newRichImage()
			tt.corrupt(img)

			report, err := newTestService().Check(context.Background(), img.Bytes())

			v, ok := check_service.AsViolation(err)
			if !ok {
				t.Fatalf("Check() error = %v, want violation %v", err, tt.want)
			}
			if v.Code != tt.want {
				t.Fatalf("Check() violation = %v (%s), want %v", v.Code, v.Error(), tt.want)
			}
			if report == nil || report.Violation != v {
				t.Errorf("report does not carry the returned violation")
			}
			if len(report.Passed) > 0 && report.Passed[len(report.Passed)-1] >= v.Check() {
				t.Errorf("Passed = %v includes check %d or later", report.Passed, v.Check())
			}
		})
	}
}

func TestCheck_Scenarios(t *testing.T) {
	t.Run("minimal image passes", func(t *testing.T) {
		if _, err := newTestService().Check(context.Background(), testimage.New(64, 10).Bytes()); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
	})

	t.Run("root data block cleared in bitmap", func(t *testing.T) {
		b := testimage.New(64, 10)
		root := b.Inode(layout.RootInode)
		b.SetAllocated(root.Addrs[0], false)

		_, err := newTestService().Check(context.Background(), b.Bytes())
		if err == nil || err.Error() != "ERROR: address used by inode but marked free in bitmap." {
			t.Fatalf("Check() error = %v", err)
		}
	})

	t.Run("link count two with one reference", func(t *testing.T) {
		b := testimage.New(64, 10)
		f := b.CreateFile(layout.RootInode, "f", 1)
		b.UpdateInode(f, func(in *layout.Inode) { in.NLink = 2 })

		_, err := newTestService().Check(context.Background(), b.Bytes())
		if err == nil || err.Error() != "ERROR: bad reference count for file." {
			t.Fatalf("Check() error = %v", err)
		}
	})
}

func TestCheck_OrderingPrefersEarlierCheck(t *testing.T) {
	img := newRichImage()
	// an orphan (check 9) and a bad type (check 1) in one image
	img.AllocInode(layout.TypeFile)
	img.UpdateInode(img.dev, func(in *layout.Inode) { in.Type = 42 })

	_, err := newTestService().Check(context.Background(), img.Bytes())
	v, ok := check_service.AsViolation(err)
	if !ok || v.Code != check_service.BadInodeType {
		t.Fatalf("Check() error = %v, want bad inode", err)
	}
}

func TestCheck_LinkCountExactness(t *testing.T) {
	tests := []struct {
		name   string
		refs   int
		stored int16
		want   check_service.Code // zero means consistent
	}{
		{"no references", 0, 0, check_service.OrphanInode},
		{"one reference", 1, 1, 0},
		{"one reference stored as zero", 1, 0, check_service.BadLinkCount},
		{"three references", 3, 3, 0},
		{"three references stored as two", 3, 2, check_service.BadLinkCount},
		{"three references stored as four", 3, 4, check_service.BadLinkCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testimage.New(64, 10)
			dir := b.Mkdir(layout.RootInode, "d")
			f := b.AllocInode(layout.TypeFile)
			for i := 0; i < tt.refs; i++ {
				parent := uint32(layout.RootInode)
				if i%2 == 1 {
					parent = dir
				}
				b.AddEntry(parent, "link"+string(rune('a'+i)), f)
			}
			b.UpdateInode(f, func(in *layout.Inode) { in.NLink = tt.stored })

			_, err := newTestService().Check(context.Background(), b.Bytes())
			if tt.want == 0 {
				if err != nil {
					t.Fatalf("Check() error = %v, want success", err)
				}
				return
			}
			v, ok := check_service.AsViolation(err)
			if !ok || v.Code != tt.want {
				t.Fatalf("Check() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCheck_BitmapSymmetry(t *testing.T) {
	base := newRichImage()
	l, err := layout.Resolve(base.Bytes())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	referenced := map[uint32]bool{}
	for i := uint32(0); i < l.NInodes(); i++ {
		in, _ := l.Inode(i)
		if !in.InUse() {
			continue
		}
		forEachRef(l, &in, func(blk uint32, _ refKind) bool {
			referenced[blk] = true
			return true
		})
	}

	for b := l.DataStart; b < l.Super.Size; b++ {
		if l.Allocated(b) != referenced[b] {
			t.Fatalf("block %d: allocated=%v referenced=%v", b, l.Allocated(b), referenced[b])
		}

		img := newRichImage()
		img.SetAllocated(b, !referenced[b])
		_, err := newTestService().Check(context.Background(), img.Bytes())
		v, ok := check_service.AsViolation(err)
		if !ok {
			t.Fatalf("block %d flipped: error = %v, want violation", b, err)
		}
		want := check_service.BlockMarkedUsedButUnreferenced
		if referenced[b] {
			want = check_service.BlockNotMarkedUsed
		}
		if v.Code != want {
			t.Errorf("block %d flipped: violation = %v, want %v", b, v.Code, want)
		}
	}
}

func TestCheck_Idempotent(t *testing.T) {
	image := newRichImage().Bytes()
	before := bytes.Clone(image)
	svc := newTestService()

	first, err := svc.Check(context.Background(), image)
	if err != nil {
		t.Fatalf("first Check() error = %v", err)
	}
	second, err := svc.Check(context.Background(), image)
	if err != nil {
		t.Fatalf("second Check() error = %v", err)
	}

	if !bytes.Equal(before, image) {
		t.Errorf("Check() modified the image buffer")
	}
	if len(first.Passed) != len(second.Passed) || first.Superblock != second.Superblock {
		t.Errorf("reports differ: %+v vs %+v", first, second)
	}
	if first.RunID == second.RunID {
		t.Errorf("both runs share RunID %s", first.RunID)
	}
}

func TestCheck_SetupErrors(t *testing.T) {
	tests := []struct {
		name    string
		image   []byte
		wantErr error
	}{
		{"empty", nil, layout.ErrImageTooSmall},
		{"one block", make([]byte, layout.BlockSize), layout.ErrImageTooSmall},
		{"zeroed superblock", make([]byte, 4*layout.BlockSize), layout.ErrLayoutInconsistent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestService().Check(context.Background(), tt.image)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Check() error = %v, want %v", err, tt.wantErr)
			}
			if report != nil {
				t.Errorf("Check() report = %+v, want nil", report)
			}
			if _, ok := check_service.AsViolation(err); ok {
				t.Errorf("setup error reported as a violation")
			}
		})
	}
}

func TestCheck_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService().Check(ctx, newRichImage().Bytes())
	if !errors.Is(err, check_service.ErrCheckCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Check() error = %v, want cancellation", err)
	}
}

func TestBlockSet(t *testing.T) {
	s := newBlockSet(13)
	if !s.add(0) || !s.add(12) {
		t.Fatalf("add() of fresh values returned false")
	}
	if s.add(12) {
		t.Errorf("add() of a present value returned true")
	}
	if s.add(13) || s.has(13) {
		t.Errorf("value past capacity was stored")
	}
	if !s.has(0) || s.has(5) {
		t.Errorf("has() wrong: has(0)=%v has(5)=%v", s.has(0), s.has(5))
	}
}
