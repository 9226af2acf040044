package layout

import "fmt"

// On-disk constants of the xv6 file system.
const (
	BlockSize       = 512
	NDirect         = 12
	NIndirect       = BlockSize / 4
	InodeSize       = 64
	InodesPerBlock  = BlockSize / InodeSize
	DirSiz          = 14
	DirentSize      = 16
	DirentsPerBlock = BlockSize / DirentSize
	BitsPerBlock    = BlockSize * 8

	BootBlock  = 0
	SuperBlock = 1
	InodeStart = 2

	RootInode = 1
)

type InodeType uint16

const (
	TypeFree InodeType = iota
	TypeDir
	TypeFile
	TypeDevice
)

func (t InodeType) Valid() bool {
	return t <= TypeDevice
}

func (t InodeType) String() string {
	switch t {
	case TypeFree:
		return "free"
	case TypeDir:
		return "dir"
	case TypeFile:
		return "file"
	case TypeDevice:
		return "device"
	default:
		return fmt.Sprintf("invalid(%d)", uint16(t))
	}
}
