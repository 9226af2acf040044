package check_service

import (
	"errors"
	"fmt"
)

// Code tags one of the structural conditions the checker can report.
type Code int

const (
	BadInodeType Code = iota + 1
	BadDirectAddress
	BadIndirectAddress
	RootDirectoryMissing
	MalformedDirectory
	BlockNotMarkedUsed
	BlockMarkedUsedButUnreferenced
	DuplicateDirectAddress
	DuplicateIndirectAddress
	OrphanInode
	DanglingDirectoryReference
	BadLinkCount
	DuplicateDirectoryLink
)

var codeInfo = map[Code]struct {
	check int
	name  string
	text  string
}{
	BadInodeType:                   {1, "BadInodeType", "bad inode"},
	BadDirectAddress:               {2, "BadDirectAddress", "bad direct address in inode"},
	BadIndirectAddress:             {2, "BadIndirectAddress", "bad indirect address in inode"},
	RootDirectoryMissing:           {3, "RootDirectoryMissing", "root directory does not exist"},
	MalformedDirectory:             {4, "MalformedDirectory", "directory not properly formatted"},
	BlockNotMarkedUsed:             {5, "BlockNotMarkedUsed", "address used by inode but marked free in bitmap"},
	BlockMarkedUsedButUnreferenced: {6, "BlockMarkedUsedButUnreferenced", "bitmap marks block in use but it is not in use"},
	DuplicateDirectAddress:         {7, "DuplicateDirectAddress", "direct address used more than once"},
	DuplicateIndirectAddress:       {8, "DuplicateIndirectAddress", "indirect address used more than once"},
	OrphanInode:                    {9, "OrphanInode", "inode marked use but not found in a directory"},
	DanglingDirectoryReference:     {10, "DanglingDirectoryReference", "inode referred to in directory but marked free"},
	BadLinkCount:                   {11, "BadLinkCount", "bad reference count for file"},
	DuplicateDirectoryLink:         {12, "DuplicateDirectoryLink", "directory appears more than once in file system"},
}

func (c Code) String() string {
	if info, ok := codeInfo[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Check returns the number of the check that reports c.
func (c Code) Check() int {
	return codeInfo[c].check
}

// Message returns the diagnostic line for c, without a line terminator.
func Message(c Code) string {
	info, ok := codeInfo[c]
	if !ok {
		return "ERROR: unknown violation."
	}
	return "ERROR: " + info.text + "."
}

// Violation is the first structural defect found in an image. Inode and
// Block locate the defect when it has a location, and are -1 otherwise.
type Violation struct {
	Code  Code
	Inode int
	Block int
}

func NewViolation(c Code, inode, block int) *Violation {
	return &Violation{Code: c, Inode: inode, Block: block}
}

func (v *Violation) Check() int {
	return v.Code.Check()
}

func (v *Violation) Error() string {
	return Message(v.Code)
}

// AsViolation extracts a *Violation from an error chain.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
