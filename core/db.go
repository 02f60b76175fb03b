package core

import "context"

// Transactor runs fn so that every store call made with the ctx it receives commits or rolls back together.
// Stores without multi-document transactions run fn directly.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopTransactor struct{}

func NewNoopTransactor() Transactor {
	return noopTransactor{}
}

func (noopTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
