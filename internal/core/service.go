// Package core implements the workflow services of mescore: lifecycle
// transitions, scheduling, statistical process control, quality recording,
// inventory movements, and read-side aggregation. All writes go through the
// persistent store's transactional API so commit-time rules see every change.
package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"mescore/internal/telemetry"
	"mescore/pkg/domain"
)

const defaultSPCWindow = 50

// Service exposes the operation surface of the workflow core.
type Service struct {
	store     domain.PersistentStore
	log       *telemetry.Logger
	metrics   *telemetry.Metrics
	spcWindow int
	nowFn     func() time.Time

	latch workstationLatch
}

// Option customizes Service construction.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(log *telemetry.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSPCWindow overrides the rolling window used for control limits.
func WithSPCWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.spcWindow = n
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// NewService constructs a Service on top of a persistent store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		metrics:   telemetry.NewMetrics(telemetry.MetricsConfig{}),
		spcWindow: defaultSPCWindow,
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		log, _ := telemetry.NewLogger(telemetry.DefaultLoggingConfig())
		s.log = log.NewComponentLogger("core")
	}
	return s
}

// Store exposes the underlying persistent store for read paths and tests.
func (s *Service) Store() domain.PersistentStore { return s.store }

// workstationLatch serializes schedule mutations per workstation while
// letting disjoint workstations proceed in parallel. Locks are acquired in
// sorted id order to avoid deadlock between overlapping sets.
type workstationLatch struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *workstationLatch) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	if _, ok := l.locks[id]; !ok {
		l.locks[id] = &sync.Mutex{}
	}
	return l.locks[id]
}

// acquire locks the given workstation ids and returns the release function.
func (l *workstationLatch) acquire(ids []string) func() {
	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			unique[id] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(unique))
	for id := range unique {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		mu := l.get(id)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// workstationIDsForClasses resolves the ids of all workstations whose class
// appears in the given set.
func (s *Service) workstationIDsForClasses(ctx context.Context, classes map[string]struct{}) ([]string, error) {
	var ids []string
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, ws := range view.ListWorkstations() {
			if _, ok := classes[ws.Class]; ok {
				ids = append(ids, ws.ID)
			}
		}
		return nil
	})
	return ids, err
}
