package dataiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Prefetcher decouples a consumer from a slow upstream producer: one
// background goroutine pulls batches ahead of the consumer into a bounded
// channel, preserving order.
//
// Upstream Value views are only valid until the upstream's next cursor
// call, so every element is deep-copied with the provided clone function
// before crossing the channel.
//
// The consumer side keeps the usual single-cursor contract; only the
// producer goroutine touches the upstream iterator.
type Prefetcher[T any] struct {
	upstream DataIter[T]
	clone    func(T) T
	depth    int

	g      *errgroup.Group
	cancel context.CancelFunc
	ch     chan T
	cur    T
	dirty  bool
	done   bool

	bytesRead atomic.Int64
}

// NewPrefetcher wraps upstream with a prefetch buffer of the given depth.
// clone must deep-copy an element out of the upstream's reusable buffers;
// for row blocks use RowBlock.Clone.
func NewPrefetcher[T any](upstream DataIter[T], clone func(T) T, depth int) *Prefetcher[T] {
	if depth <= 0 {
		depth = 1
	}
	p := &Prefetcher[T]{
		upstream: upstream,
		clone:    clone,
		depth:    depth,
	}
	p.start()
	return p
}

func (p *Prefetcher[T]) start() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	p.g = g
	p.cancel = cancel
	p.ch = make(chan T, p.depth)
	p.done = false

	ch := p.ch
	g.Go(func() error {
		defer close(ch)
		p.upstream.BeforeFirst()
		for p.upstream.Next() {
			v := p.clone(p.upstream.Value())
			if bs, ok := p.upstream.(ByteSource); ok {
				p.bytesRead.Store(bs.BytesRead())
			}
			select {
			case ch <- v:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
}

// BeforeFirst restarts the producer from the top of the upstream. While the
// cursor is still at the head it is a no-op, so single-pass upstreams work;
// an actual rewind requires the upstream to support rewinding too.
func (p *Prefetcher[T]) BeforeFirst() {
	if !p.dirty {
		return
	}
	p.stop()
	p.start()
	p.dirty = false
}

// Next blocks until a prefetched element is available or the producer is
// exhausted.
func (p *Prefetcher[T]) Next() bool {
	p.dirty = true
	v, ok := <-p.ch
	if !ok {
		p.done = true
		return false
	}
	p.cur = v
	return true
}

// Value returns the current prefetched element.
func (p *Prefetcher[T]) Value() T {
	return p.cur
}

// BytesRead reports the upstream's byte counter as of the most recently
// produced batch. It trails the upstream slightly because production runs
// ahead of consumption.
func (p *Prefetcher[T]) BytesRead() int64 {
	return p.bytesRead.Load()
}

// Err returns the upstream's deferred error, if any, once the producer has
// stopped.
func (p *Prefetcher[T]) Err() error {
	if !p.done {
		return nil
	}
	if es, ok := p.upstream.(errSource); ok {
		return es.Err()
	}
	return nil
}

// Close stops the producer goroutine and waits for it to exit.
func (p *Prefetcher[T]) Close() error {
	p.stop()
	if c, ok := p.upstream.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (p *Prefetcher[T]) stop() {
	p.cancel()
	// Unblock a producer waiting on a full channel.
	for range p.ch {
	}
	_ = p.g.Wait()
}
