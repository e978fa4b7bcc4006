// Package docstore keeps whole game documents keyed by id. Every write stamps a fresh
// opaque version token; Mutate is the read-transform-write loop built on top of the
// conditional write.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultMaxRetries = 10

var (
	ErrNotFound        = errors.New("docstore: document not found")
	ErrExists          = errors.New("docstore: document already exists")
	ErrVersionMismatch = errors.New("docstore: version mismatch")
	// ErrConcurrentUpdate is returned by Mutate once the retry budget is spent. Callers may
	// resubmit.
	ErrConcurrentUpdate = errors.New("docstore: concurrent update")
)

type Record struct {
	ID        string
	Version   string
	Body      []byte
	UpdatedAt time.Time
}

type Store interface {
	Create(ctx context.Context, id string, body []byte) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// CompareAndSwap writes body only if the stored version still equals prev. It returns
	// ErrVersionMismatch when another writer got there first.
	CompareAndSwap(ctx context.Context, id, prev string, body []byte) (Record, error)
	// Put writes unconditionally. Only a writer holding exclusive access to the document
	// (turn resolution) may use it.
	Put(ctx context.Context, id string, body []byte) (Record, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Transform receives the current record and returns the body to write. Any error aborts the
// mutation without a retry.
type Transform func(cur Record) ([]byte, error)

// Mutate runs fn against a fresh read and writes the result conditionally. A lost race
// restarts the whole cycle, up to maxRetries times after the first attempt. The returned
// int is the number of attempts made.
func Mutate(ctx context.Context, s Store, id string, fn Transform, maxRetries int) (Record, int, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	attempts := 0
	for attempts <= maxRetries {
		if err := ctx.Err(); err != nil {
			return Record{}, attempts, err
		}
		attempts++
		cur, err := s.Get(ctx, id)
		if err != nil {
			return Record{}, attempts, err
		}
		body, err := fn(cur)
		if err != nil {
			return Record{}, attempts, err
		}
		rec, err := s.CompareAndSwap(ctx, id, cur.Version, body)
		if err == nil {
			return rec, attempts, nil
		}
		if !errors.Is(err, ErrVersionMismatch) {
			return Record{}, attempts, err
		}
	}
	return Record{}, attempts, fmt.Errorf("%w: %s after %d attempts", ErrConcurrentUpdate, id, attempts)
}
