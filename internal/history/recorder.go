package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/slidesense/internal/resilience"
)

// Sink names used by [Recorder] and in metrics.
const (
	SinkPostgres = "postgres"
	SinkFile     = "file"
)

// Recorder writes each record to the first healthy store in a failover
// chain. A store whose breaker is open is skipped until it recovers.
type Recorder struct {
	failover *resilience.Failover[Store]
	stores   []Store
}

// NewRecorder creates an empty [Recorder]. Stores added first are preferred.
func NewRecorder(cfg resilience.BreakerConfig) *Recorder {
	return &Recorder{failover: resilience.NewFailover[Store](cfg)}
}

// Add registers a named store.
func (r *Recorder) Add(name string, s Store) {
	r.failover.Add(name, s)
	r.stores = append(r.stores, s)
}

// Sinks returns the registered store names in preference order.
func (r *Recorder) Sinks() []string { return r.failover.Names() }

// Append writes rec and returns the name of the store that accepted it.
func (r *Recorder) Append(ctx context.Context, rec Record) (string, error) {
	name, err := r.failover.Do(ctx, func(ctx context.Context, s Store) error {
		return s.Append(ctx, rec)
	})
	if err != nil {
		return "", fmt.Errorf("history: append: %w", err)
	}
	return name, nil
}

// Load reads records from the first store that answers.
func (r *Recorder) Load(ctx context.Context) ([]Record, error) {
	records, _, err := resilience.Call(ctx, r.failover, func(ctx context.Context, s Store) ([]Record, error) {
		return s.Load(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	return records, nil
}

// Close closes every store.
func (r *Recorder) Close() error {
	var errs []error
	for _, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
