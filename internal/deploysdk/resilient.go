package deploysdk

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultReconnectDelay is the fixed pause between two connection attempts
const DefaultReconnectDelay = 5 * time.Second

// OpenFunc opens a fresh NDJSON stream
type OpenFunc[T any] func(ctx context.Context) (*Stream[T], error)

// ResilientStream yields values from a live feed that the server may drop
// at any time. Malformed lines are skipped. A failed open, a broken
// connection or a plain end of stream all lead to a fixed delay and a
// reconnect. The stream never finishes on its own; Next only returns an
// error once ctx is done.
type ResilientStream[T any] struct {
	name       string
	open       OpenFunc[T]
	delay      time.Duration
	wait       func(ctx context.Context, d time.Duration) error
	current    *Stream[T]
	reconnects int
}

func NewResilientStream[T any](name string, open OpenFunc[T]) *ResilientStream[T] {
	return &ResilientStream[T]{
		name:  name,
		open:  open,
		delay: DefaultReconnectDelay,
		wait:  sleepContext,
	}
}

// SetReconnectDelay overrides DefaultReconnectDelay
func (r *ResilientStream[T]) SetReconnectDelay(d time.Duration) *ResilientStream[T] {
	r.delay = d
	return r
}

// Reconnects returns how many times the underlying stream was reopened
func (r *ResilientStream[T]) Reconnects() int {
	return r.reconnects
}

func (r *ResilientStream[T]) Next(ctx context.Context) (T, error) {
	var zero T

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if r.current == nil {
			stream, err := r.open(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return zero, ctx.Err()
				}
				slog.Warn("stream open failed", "stream", r.name, "retry", r.delay, "error", err)
				if err := r.wait(ctx, r.delay); err != nil {
					return zero, err
				}
				continue
			}
			r.current = stream
			slog.Debug("stream connected", "stream", r.name, "reconnects", r.reconnects)
		}

		v, err := r.current.Next()
		if err == nil {
			return v, nil
		}

		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			slog.Warn("stream skipped malformed line", "stream", r.name, "error", err)
			continue
		}

		r.current.Close()
		r.current = nil
		r.reconnects++

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		slog.Info("stream disconnected", "stream", r.name, "retry", r.delay, "reason", err)
		if err := r.wait(ctx, r.delay); err != nil {
			return zero, err
		}
	}
}

// Close tears down the current connection, if any
func (r *ResilientStream[T]) Close() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
