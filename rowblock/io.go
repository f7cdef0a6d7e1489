package rowblock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/csrow/csrow/persistence"
)

// The on-disk record is a stable wire contract: a fixed header, then the
// four length-prefixed arrays in canonical order offset, label, index,
// value, then a CRC32 trailer over everything before it. Save and Load use
// exactly this order in both directions.

// indexWidth returns the width of I in bits.
func indexWidth[I Index]() uint32 {
	var zero I
	return uint32(binary.Size(zero)) * 8
}

// Save writes the container as one binary record to w.
func (c *Container[I]) Save(w io.Writer) error {
	cw := persistence.NewChecksumWriter(w)
	bw := persistence.NewWriter(cw)

	header := persistence.FileHeader{
		IndexWidth: indexWidth[I](),
		NumRows:    uint64(c.Size()),
		NumIndex:   uint64(len(c.index)),
		MaxIndex:   uint64(c.maxIndex),
	}
	if len(c.value) != 0 {
		header.Flags |= persistence.FlagHasValue
	}
	if err := bw.WriteHeader(&header); err != nil {
		return err
	}

	if err := bw.WriteUint64Slice(c.offset); err != nil {
		return err
	}
	if err := bw.WriteFloat32Slice(c.label); err != nil {
		return err
	}
	if err := writeIndexSlice(bw, c.index); err != nil {
		return err
	}
	if err := bw.WriteFloat32Slice(c.value); err != nil {
		return err
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.Sum())
	_, err := w.Write(trailer[:])
	return err
}

// Load replaces the container's contents with a record read from r. Any
// read failure, header mismatch or inconsistency between the arrays yields
// an error wrapping ErrBadFormat, in which case the container keeps its
// previous contents.
func (c *Container[I]) Load(r io.Reader) error {
	cr := persistence.NewChecksumReader(r)
	br := persistence.NewReader(cr)

	header, err := br.ReadHeader()
	if err != nil {
		return badFormat(err)
	}
	if want := indexWidth[I](); header.IndexWidth != want {
		return fmt.Errorf("%w: record index width %d, container width %d", ErrBadFormat, header.IndexWidth, want)
	}

	offset, err := br.ReadUint64Slice()
	if err != nil {
		return badFormat(err)
	}
	label, err := br.ReadFloat32Slice()
	if err != nil {
		return badFormat(err)
	}
	index, err := readIndexSlice[I](br)
	if err != nil {
		return badFormat(err)
	}
	value, err := br.ReadFloat32Slice()
	if err != nil {
		return badFormat(err)
	}

	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return badFormat(err)
	}
	if err := cr.Verify(binary.LittleEndian.Uint32(trailer[:])); err != nil {
		return badFormat(err)
	}

	if err := checkArrays(header, offset, label, index, value); err != nil {
		return err
	}

	c.offset = offset
	c.label = label
	c.index = index
	c.value = value
	if c.label == nil {
		c.label = []float32{}
	}
	c.maxIndex = I(header.MaxIndex)
	return nil
}

// checkArrays validates the loaded arrays against each other and the
// header. A record that fails here was produced by a different writer or
// got corrupted in a way the checksum cannot see (e.g. a truncated copy of
// a valid prefix is impossible, but a hostile writer is not).
func checkArrays[I Index](header *persistence.FileHeader, offset []uint64, label []float32, index []I, value []float32) error {
	if len(offset) == 0 || offset[0] != 0 {
		return fmt.Errorf("%w: offset array must start at 0", ErrBadFormat)
	}
	if uint64(len(offset)) != header.NumRows+1 || uint64(len(label)) != header.NumRows {
		return fmt.Errorf("%w: row counts disagree with header", ErrBadFormat)
	}
	for i := 1; i < len(offset); i++ {
		if offset[i] < offset[i-1] {
			return fmt.Errorf("%w: offset array not monotone at %d", ErrBadFormat, i)
		}
	}
	last := offset[len(offset)-1]
	if last != uint64(len(index)) || last != header.NumIndex {
		return fmt.Errorf("%w: final offset %d inconsistent with index count %d", ErrBadFormat, last, len(index))
	}
	if len(value) != 0 && uint64(len(value)) != last {
		return fmt.Errorf("%w: value count %d inconsistent with index count %d", ErrBadFormat, len(value), last)
	}
	hasValue := header.Flags&persistence.FlagHasValue != 0
	if hasValue != (len(value) != 0) && last != 0 {
		return fmt.Errorf("%w: value presence disagrees with header flags", ErrBadFormat)
	}
	limit := maxIndexValue[I]()
	for _, idx := range index {
		if uint64(idx) > header.MaxIndex || uint64(idx) >= limit {
			return fmt.Errorf("%w: index %d exceeds header max %d", ErrBadFormat, idx, header.MaxIndex)
		}
	}
	return nil
}

func badFormat(err error) error {
	if errors.Is(err, ErrBadFormat) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBadFormat, err)
}

// writeIndexSlice dispatches on the concrete index width. The generic
// parameter is a closed set, so the type switch is exhaustive.
func writeIndexSlice[I Index](bw *persistence.Writer, index []I) error {
	switch s := any(index).(type) {
	case []uint16:
		return bw.WriteUint16Slice(s)
	case []uint32:
		return bw.WriteUint32Slice(s)
	case []uint64:
		return bw.WriteUint64Slice(s)
	default:
		return writeIndexSliceSlow(bw, index)
	}
}

// writeIndexSliceSlow handles named types over the supported widths by
// copying into the underlying representation.
func writeIndexSliceSlow[I Index](bw *persistence.Writer, index []I) error {
	switch indexWidth[I]() {
	case 16:
		tmp := make([]uint16, len(index))
		for i, v := range index {
			tmp[i] = uint16(v)
		}
		return bw.WriteUint16Slice(tmp)
	case 32:
		tmp := make([]uint32, len(index))
		for i, v := range index {
			tmp[i] = uint32(v)
		}
		return bw.WriteUint32Slice(tmp)
	default:
		tmp := make([]uint64, len(index))
		for i, v := range index {
			tmp[i] = uint64(v)
		}
		return bw.WriteUint64Slice(tmp)
	}
}

func readIndexSlice[I Index](br *persistence.Reader) ([]I, error) {
	switch indexWidth[I]() {
	case 16:
		s, err := br.ReadUint16Slice()
		return castIndexSlice[I](s), err
	case 32:
		s, err := br.ReadUint32Slice()
		return castIndexSlice[I](s), err
	default:
		s, err := br.ReadUint64Slice()
		return castIndexSlice[I](s), err
	}
}

func castIndexSlice[I Index, J Index](s []J) []I {
	if s == nil {
		return nil
	}
	if out, ok := any(s).([]I); ok {
		return out
	}
	out := make([]I, len(s))
	for i, v := range s {
		out[i] = I(v)
	}
	return out
}

// SaveFile writes the container to path atomically.
func (c *Container[I]) SaveFile(path string) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		return c.Save(w)
	})
}

// LoadFile reads a record file written by SaveFile.
func (c *Container[I]) LoadFile(path string) error {
	return persistence.LoadFromFile(path, func(r io.Reader) error {
		return c.Load(r)
	})
}
