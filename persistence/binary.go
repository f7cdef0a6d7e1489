// Package persistence provides the low-level binary stream primitives for
// row block records: a fixed little-endian file header, length-prefixed raw
// array sections, CRC32 trailers and memory-mapped loading.
//
// The generic contract is "write a length-prefixed sequence of T" paired
// with "read a length-prefixed sequence of T"; Writer and Reader implement
// exactly that pairing and nothing else decides the field order.
package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unsafe"
)

// maxSectionElems bounds the element count a reader accepts for a single
// section. It guards against allocating absurd amounts of memory when fed a
// corrupt or truncated stream.
const maxSectionElems = 1 << 40

// Writer writes record sections in optimized binary format.
// Every section is a uint64 element count followed by the raw little-endian
// element data, padded to an 8-byte boundary.
type Writer struct {
	w io.Writer
	n int64
}

// NewWriter creates a new binary record writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// BytesWritten returns the number of bytes written so far.
func (bw *Writer) BytesWritten() int64 {
	return bw.n
}

// WriteHeader writes the file header. Magic and version are stamped here so
// callers cannot produce a record with a stale header.
func (bw *Writer) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	if err := binary.Write(bw.w, binary.LittleEndian, header); err != nil {
		return err
	}
	bw.n += FileHeaderSize
	return nil
}

// WriteUint64Slice writes a length-prefixed uint64 section.
func (bw *Writer) WriteUint64Slice(slice []uint64) error {
	if err := bw.writeCount(len(slice)); err != nil {
		return err
	}
	if len(slice) == 0 {
		return bw.pad()
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*8)
	if err := bw.writeRaw(byteSlice); err != nil {
		return err
	}
	return bw.pad()
}

// WriteUint32Slice writes a length-prefixed uint32 section.
func (bw *Writer) WriteUint32Slice(slice []uint32) error {
	if err := bw.writeCount(len(slice)); err != nil {
		return err
	}
	if len(slice) == 0 {
		return bw.pad()
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*4)
	if err := bw.writeRaw(byteSlice); err != nil {
		return err
	}
	return bw.pad()
}

// WriteUint16Slice writes a length-prefixed uint16 section.
func (bw *Writer) WriteUint16Slice(slice []uint16) error {
	if err := bw.writeCount(len(slice)); err != nil {
		return err
	}
	if len(slice) == 0 {
		return bw.pad()
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*2)
	if err := bw.writeRaw(byteSlice); err != nil {
		return err
	}
	return bw.pad()
}

// WriteFloat32Slice writes a length-prefixed float32 section.
func (bw *Writer) WriteFloat32Slice(slice []float32) error {
	if err := bw.writeCount(len(slice)); err != nil {
		return err
	}
	if len(slice) == 0 {
		return bw.pad()
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*4)
	if err := bw.writeRaw(byteSlice); err != nil {
		return err
	}
	return bw.pad()
}

func (bw *Writer) writeCount(n int) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	return bw.writeRaw(buf[:])
}

func (bw *Writer) writeRaw(p []byte) error {
	n, err := bw.w.Write(p)
	bw.n += int64(n)
	return err
}

var zeroPad [Align]byte

func (bw *Writer) pad() error {
	if rem := bw.n % Align; rem != 0 {
		return bw.writeRaw(zeroPad[:Align-rem])
	}
	return nil
}

// Reader reads record sections written by Writer. Each Read* call reports
// failure instead of returning short data; a failed read means the stream is
// truncated or not a record at all.
type Reader struct {
	r io.Reader
	n int64
}

// NewReader creates a new binary record reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// BytesRead returns the number of bytes consumed so far.
func (br *Reader) BytesRead() int64 {
	return br.n
}

// ReadHeader reads and validates the file header.
func (br *Reader) ReadHeader() (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(br.r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	br.n += FileHeaderSize
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	if !ValidWidth(header.IndexWidth) {
		return nil, fmt.Errorf("%w: %d bits", ErrInvalidWidth, header.IndexWidth)
	}
	return &header, nil
}

// ReadUint64Slice reads a length-prefixed uint64 section.
func (br *Reader) ReadUint64Slice() ([]uint64, error) {
	count, err := br.readCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, br.skipPad()
	}
	slice := make([]uint64, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*8)
	if err := br.readRaw(byteSlice); err != nil {
		return nil, err
	}
	return slice, br.skipPad()
}

// ReadUint32Slice reads a length-prefixed uint32 section.
func (br *Reader) ReadUint32Slice() ([]uint32, error) {
	count, err := br.readCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, br.skipPad()
	}
	slice := make([]uint32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*4)
	if err := br.readRaw(byteSlice); err != nil {
		return nil, err
	}
	return slice, br.skipPad()
}

// ReadUint16Slice reads a length-prefixed uint16 section.
func (br *Reader) ReadUint16Slice() ([]uint16, error) {
	count, err := br.readCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, br.skipPad()
	}
	slice := make([]uint16, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*2)
	if err := br.readRaw(byteSlice); err != nil {
		return nil, err
	}
	return slice, br.skipPad()
}

// ReadFloat32Slice reads a length-prefixed float32 section.
func (br *Reader) ReadFloat32Slice() ([]float32, error) {
	count, err := br.readCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, br.skipPad()
	}
	slice := make([]float32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*4)
	if err := br.readRaw(byteSlice); err != nil {
		return nil, err
	}
	return slice, br.skipPad()
}

func (br *Reader) readCount() (int, error) {
	var buf [8]byte
	if err := br.readRaw(buf[:]); err != nil {
		return 0, err
	}
	count := binary.LittleEndian.Uint64(buf[:])
	if count > maxSectionElems || count > math.MaxInt {
		return 0, fmt.Errorf("%w: section count %d out of range", ErrBadRecord, count)
	}
	return int(count), nil
}

func (br *Reader) readRaw(p []byte) error {
	n, err := io.ReadFull(br.r, p)
	br.n += int64(n)
	return err
}

func (br *Reader) skipPad() error {
	if rem := br.n % Align; rem != 0 {
		var buf [Align]byte
		return br.readRaw(buf[:Align-rem])
	}
	return nil
}
