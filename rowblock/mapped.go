package rowblock

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/csrow/csrow/persistence"
)

// Mapped is a read-only row block backed by a memory-mapped record file.
// The block's arrays alias the mapping directly; nothing is copied. The
// views stay valid until Close.
type Mapped[I Index] struct {
	m     *persistence.Mapping
	block RowBlock[I]
	hdr   persistence.FileHeader
}

// OpenMapped maps the record file at path and exposes a zero-copy row block
// over it. The record's index width must match I. Sections inside the file
// are 8-byte aligned, which makes the typed reinterpretation valid.
func OpenMapped[I Index](path string) (*Mapped[I], error) {
	m, err := persistence.MapFile(path)
	if err != nil {
		return nil, err
	}
	mb, err := interpretMapping[I](m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return mb, nil
}

// Block returns the mapped row block view.
func (mb *Mapped[I]) Block() RowBlock[I] {
	return mb.block
}

// NumCol returns 1 + the record's max feature index, 0 for an empty record.
func (mb *Mapped[I]) NumCol() uint64 {
	if mb.hdr.NumIndex == 0 {
		return 0
	}
	return mb.hdr.MaxIndex + 1
}

// Close unmaps the file. All views derived from the block become invalid.
func (mb *Mapped[I]) Close() error {
	mb.block = RowBlock[I]{}
	return mb.m.Close()
}

func interpretMapping[I Index](m *persistence.Mapping) (*Mapped[I], error) {
	data := m.Bytes()
	if len(data) < persistence.FileHeaderSize+4 {
		return nil, fmt.Errorf("%w: file too small", ErrBadFormat)
	}

	body := data[:len(data)-4]
	sum := binary.LittleEndian.Uint32(data[len(data)-4:])
	if got := persistence.Checksum(body); got != sum {
		return nil, fmt.Errorf("%w: checksum mismatch: expected 0x%08x, got 0x%08x", ErrBadFormat, sum, got)
	}

	var hdr persistence.FileHeader
	if _, err := binary.Decode(body[:persistence.FileHeaderSize], binary.LittleEndian, &hdr); err != nil {
		return nil, badFormat(err)
	}
	if hdr.Magic != persistence.MagicNumber {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, persistence.ErrInvalidMagic)
	}
	if hdr.Version != persistence.Version {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, persistence.ErrInvalidVersion)
	}
	if want := indexWidth[I](); hdr.IndexWidth != want {
		return nil, fmt.Errorf("%w: record index width %d, want %d", ErrBadFormat, hdr.IndexWidth, want)
	}

	pos := persistence.FileHeaderSize

	offset, pos, err := mapSection[uint64](body, pos)
	if err != nil {
		return nil, err
	}
	label, pos, err := mapSection[float32](body, pos)
	if err != nil {
		return nil, err
	}
	index, pos, err := mapSection[I](body, pos)
	if err != nil {
		return nil, err
	}
	value, _, err := mapSection[float32](body, pos)
	if err != nil {
		return nil, err
	}

	if err := checkArrays(&hdr, offset, label, index, value); err != nil {
		return nil, err
	}

	block := RowBlock[I]{Offset: offset, Label: label, Index: index}
	if len(value) != 0 {
		block.Value = value
	}
	return &Mapped[I]{m: m, block: block, hdr: hdr}, nil
}

// mapSection reinterprets one length-prefixed section of the mapped file as
// a typed slice and returns the position of the next section.
func mapSection[T any](body []byte, pos int) ([]T, int, error) {
	if pos+8 > len(body) {
		return nil, 0, fmt.Errorf("%w: truncated section header", ErrBadFormat)
	}
	count := binary.LittleEndian.Uint64(body[pos : pos+8])
	pos += 8

	var zero T
	elem := int(unsafe.Sizeof(zero))
	need := int(count) * elem
	if count > uint64(len(body)) || pos+need > len(body) {
		return nil, 0, fmt.Errorf("%w: truncated section data", ErrBadFormat)
	}

	var out []T
	if count > 0 {
		out = unsafe.Slice((*T)(unsafe.Pointer(&body[pos])), count)
		pos += need
	}
	if rem := pos % persistence.Align; rem != 0 {
		pos += persistence.Align - rem
	}
	if pos > len(body) {
		return nil, 0, fmt.Errorf("%w: truncated section padding", ErrBadFormat)
	}
	return out, pos, nil
}
