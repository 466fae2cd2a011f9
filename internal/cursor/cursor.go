// Package cursor gives every record decoder the same forward-only
// iteration protocol.
package cursor

import (
	"errors"
	"io"
	"iter"
)

// Decoder is implemented by the BAM, BCF and FASTA readers. Next returns
// io.EOF at a clean end of stream.
type Decoder[T any] interface {
	Next() (T, error)
}

// Cursor walks a Decoder in the style of bufio.Scanner:
//
//	c := cursor.New(r)
//	for c.Scan() {
//		use(c.Record())
//	}
//	if err := c.Err(); err != nil { ... }
type Cursor[T any] struct {
	d   Decoder[T]
	rec T
	err error
}

// New returns a Cursor over d. Nothing is read until the first Scan.
func New[T any](d Decoder[T]) *Cursor[T] {
	return &Cursor[T]{d: d}
}

// Scan advances to the next record. It returns false at the end of the
// stream or on the first error.
func (c *Cursor[T]) Scan() bool {
	if c.err != nil {
		return false
	}
	rec, err := c.d.Next()
	if err != nil {
		var zero T
		c.rec, c.err = zero, err
		return false
	}
	c.rec = rec
	return true
}

// Record returns the record read by the last successful Scan. It carries
// the lifetime rules of the underlying decoder.
func (c *Cursor[T]) Record() T {
	return c.rec
}

// Err returns the error that stopped the cursor, or nil at a clean end.
func (c *Cursor[T]) Err() error {
	if errors.Is(c.err, io.EOF) {
		return nil
	}
	return c.err
}

// All ranges over the records of d. A failure is yielded once, with a zero
// record, and ends the sequence.
func All[T any](d Decoder[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		c := New(d)
		for c.Scan() {
			if !yield(c.Record(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}
