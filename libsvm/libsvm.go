// Package libsvm parses LIBSVM-format text into row block batches.
//
// Each input line is one row: a floating-point label followed by
// whitespace-separated index:value features. Blank lines are skipped and a
// '#' starts a comment that runs to the end of the line.
//
// The parser is a single-pass pull iterator over chunks of the input: every
// Next tokenizes roughly one chunk worth of lines into a fresh batch. The
// batch returned by Value borrows the parser's reusable buffers and is
// invalidated by the next cursor call.
package libsvm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/csrow/csrow/dataiter"
	"github.com/csrow/csrow/rowblock"
	"github.com/csrow/csrow/split"
)

// DefaultChunkSize is the approximate number of input bytes tokenized per
// batch.
const DefaultChunkSize = 4 << 20

type options struct {
	chunkSize int
}

// Option configures the parser.
type Option func(*options)

// WithChunkSize sets the approximate input bytes per emitted batch.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// Parser is a pull iterator producing RowBlock[uint64] batches from LIBSVM
// text. It is single-pass: BeforeFirst is only valid while the cursor is
// still at the head.
type Parser struct {
	src       io.Reader
	br        *bufio.Reader
	byteCount dataiter.ByteSource

	chunkSize int
	data      *rowblock.Container[uint64]
	block     rowblock.RowBlock[uint64]

	idxBuf []uint64
	valBuf []float32

	line    int64
	started bool
	done    bool
	err     error
}

// NewParser creates a parser over r. If r does not report consumed bytes
// itself, a counting wrapper is added so BytesRead always works.
func NewParser(r io.Reader, opts ...Option) *Parser {
	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Parser{
		src:       r,
		chunkSize: o.chunkSize,
		data:      rowblock.New[uint64](),
	}
	if bs, ok := r.(dataiter.ByteSource); ok {
		p.byteCount = bs
		p.br = bufio.NewReader(r)
	} else {
		counter := split.NewCountingReader(r)
		p.byteCount = counter
		p.br = bufio.NewReader(counter)
	}
	return p
}

// BeforeFirst resets the cursor. The parser streams its input and cannot
// rewind, so this is valid only before the first Next.
func (p *Parser) BeforeFirst() {
	if p.started {
		panic("libsvm: parser is single-pass and cannot rewind")
	}
}

// Next tokenizes the next chunk of input. It returns false on exhaustion or
// on the first malformed line; check Err to tell the two apart.
func (p *Parser) Next() bool {
	if p.err != nil || p.done {
		return false
	}
	p.started = true

	for {
		p.data.Clear()
		consumed := 0
		for consumed < p.chunkSize && !p.done {
			line, err := p.br.ReadString('\n')
			if len(line) > 0 {
				consumed += len(line)
				p.line++
				if perr := p.parseLine(line); perr != nil {
					p.err = perr
					return false
				}
			}
			if err == io.EOF {
				p.done = true
			} else if err != nil {
				p.err = fmt.Errorf("libsvm: %w", err)
				return false
			}
		}
		if p.data.Size() > 0 {
			p.block = p.data.GetBlock()
			return true
		}
		if p.done {
			return false
		}
	}
}

// Value returns the current batch. It borrows the parser's buffers and is
// invalidated by the next cursor call.
func (p *Parser) Value() rowblock.RowBlock[uint64] {
	return p.block
}

// Err returns the parse error that stopped Next early, if any.
func (p *Parser) Err() error {
	return p.err
}

// BytesRead returns the cumulative raw input bytes consumed.
func (p *Parser) BytesRead() int64 {
	return p.byteCount.BytesRead()
}

// Close closes the underlying reader when it is closable.
func (p *Parser) Close() error {
	if c, ok := p.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Parser) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	label, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return fmt.Errorf("libsvm: line %d: bad label %q: %w", p.line, fields[0], err)
	}

	p.idxBuf = p.idxBuf[:0]
	p.valBuf = p.valBuf[:0]
	for _, tok := range fields[1:] {
		idxStr, valStr, ok := strings.Cut(tok, ":")
		if !ok {
			return fmt.Errorf("libsvm: line %d: bad feature %q: want index:value", p.line, tok)
		}
		idx, err := strconv.ParseUint(idxStr, 10, 64)
		if err != nil {
			return fmt.Errorf("libsvm: line %d: bad feature index %q: %w", p.line, idxStr, err)
		}
		val, err := strconv.ParseFloat(valStr, 32)
		if err != nil {
			return fmt.Errorf("libsvm: line %d: bad feature value %q: %w", p.line, valStr, err)
		}
		p.idxBuf = append(p.idxBuf, idx)
		p.valBuf = append(p.valBuf, float32(val))
	}

	return p.data.Push(rowblock.Row[uint64]{
		Label: float32(label),
		Index: p.idxBuf,
		Value: p.valBuf,
	})
}
