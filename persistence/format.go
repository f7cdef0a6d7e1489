package persistence

import "errors"

const (
	// MagicNumber identifies csrow binary record files (ASCII: "CSR0")
	MagicNumber = 0x43535230
	// Version is the current record format version (v1.0.0)
	Version = 0x00010000

	// Align is the section alignment inside a record file. Every array
	// section starts on an 8-byte boundary so that a memory-mapped file can
	// be reinterpreted as typed slices without copying.
	Align = 8

	// FileHeaderSize is the encoded size of FileHeader in bytes.
	FileHeaderSize = 48

	// FlagHasValue marks a record whose value array is present. When the
	// flag is clear every feature value is implicitly 1.0.
	FlagHasValue = 1
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidWidth   = errors.New("invalid index width")
	ErrBadRecord      = errors.New("bad row block record")
)

// FileHeader is the fixed 48-byte header at the start of every record file.
// Layout is little-endian and 8-byte aligned for mmap compatibility.
type FileHeader struct {
	Magic      uint32 // 0x43535230 ("CSR0")
	Version    uint32 // Record format version
	IndexWidth uint32 // Bits per feature index: 16, 32 or 64
	Flags      uint32 // FlagHasValue
	NumRows    uint64 // Row count (len(offset) - 1)
	NumIndex   uint64 // Total nonzero count (offset[NumRows])
	MaxIndex   uint64 // Largest feature index ever appended
	Reserved   [8]byte
}

// ValidWidth reports whether w is one of the supported index widths.
func ValidWidth(w uint32) bool {
	return w == 16 || w == 32 || w == 64
}
