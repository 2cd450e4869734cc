package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Failover] failed or had
// an open breaker.
var ErrAllFailed = errors.New("resilience: all members failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover tries its members in registration order. Each member sits behind
// its own [Breaker] built from a shared [BreakerConfig]. Members must be
// added before the first call.
type Failover[T any] struct {
	cfg     BreakerConfig
	members []member[T]
}

// NewFailover creates an empty [Failover]. cfg.Name is ignored; each member
// breaker is named after its member.
func NewFailover[T any](cfg BreakerConfig) *Failover[T] {
	return &Failover[T]{cfg: cfg}
}

// Add appends a member.
func (f *Failover[T]) Add(name string, value T) {
	cfg := f.cfg
	cfg.Name = name
	f.members = append(f.members, member[T]{name: name, value: value, breaker: NewBreaker(cfg)})
}

// Len returns the number of members.
func (f *Failover[T]) Len() int { return len(f.members) }

// Names returns the member names in try order.
func (f *Failover[T]) Names() []string {
	names := make([]string, len(f.members))
	for i, m := range f.members {
		names[i] = m.name
	}
	return names
}

// States returns each member's breaker state keyed by member name.
func (f *Failover[T]) States() map[string]State {
	out := make(map[string]State, len(f.members))
	for _, m := range f.members {
		out[m.name] = m.breaker.State()
	}
	return out
}

// Do runs fn against each member until one succeeds and returns that
// member's name. When every member fails the error wraps [ErrAllFailed] and
// each member's error.
func (f *Failover[T]) Do(ctx context.Context, fn func(context.Context, T) error) (string, error) {
	_, name, err := Call(ctx, f, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return name, err
}

// Call is [Failover.Do] for functions that return a value.
func Call[T, R any](ctx context.Context, f *Failover[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	if len(f.members) == 0 {
		return zero, "", fmt.Errorf("%w: no members", ErrAllFailed)
	}
	for i := range f.members {
		m := &f.members[i]
		var out R
		err := m.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx, m.value)
			return err
		})
		if err == nil {
			return out, m.name, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, "", ctxErr
		}
		if errors.Is(err, ErrOpen) {
			slog.Debug("resilience: skipping member with open circuit", "member", m.name)
		} else {
			slog.Warn("resilience: member failed, trying next", "member", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
