// Package memory provides an in-memory implementation of the storage
// interfaces for tests. Transactions are snapshot based: Begin clones the
// state, Commit publishes the clone back, Rollback discards it. This keeps
// the atomicity behavior of the real storage observable in tests without a
// database.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/storage"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// InsertedJob records a single AddJob call.
type InsertedJob struct {
	Args river.JobArgs
	Opts *river.InsertOpts
}

type state struct {
	organizations map[uuid.UUID]domain.Organization
	users         map[uuid.UUID]domain.User
	apiKeys       map[uuid.UUID]domain.ApiKey
	websites      map[uuid.UUID]domain.Website
	scans         map[uuid.UUID]domain.Scan
	schedules     map[uuid.UUID]domain.ScanSchedule
	billingEvents map[string]domain.BillingEvent
	jobs          []InsertedJob

	addJobErr error
}

func newState() *state {
	return &state{
		organizations: map[uuid.UUID]domain.Organization{},
		users:         map[uuid.UUID]domain.User{},
		apiKeys:       map[uuid.UUID]domain.ApiKey{},
		websites:      map[uuid.UUID]domain.Website{},
		scans:         map[uuid.UUID]domain.Scan{},
		schedules:     map[uuid.UUID]domain.ScanSchedule{},
		billingEvents: map[string]domain.BillingEvent{},
	}
}

func (s *state) clone() *state {
	return &state{
		organizations: maps.Clone(s.organizations),
		users:         maps.Clone(s.users),
		apiKeys:       maps.Clone(s.apiKeys),
		websites:      maps.Clone(s.websites),
		scans:         maps.Clone(s.scans),
		schedules:     maps.Clone(s.schedules),
		billingEvents: maps.Clone(s.billingEvents),
		jobs:          slices.Clone(s.jobs),
		addJobErr:     s.addJobErr,
	}
}

// Memory is an in-memory storage.Storage.
type Memory struct {
	accessor

	mu sync.Mutex
	st *state
}

// New creates an empty in-memory storage.
func New() *Memory {
	m := &Memory{st: newState()}
	m.accessor.holder = m

	return m
}

// FailAddJob makes every subsequent AddJob call fail with err. Pass nil to
// restore normal behavior.
func (m *Memory) FailAddJob(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.addJobErr = err
}

// Jobs returns a copy of all recorded job inserts.
func (m *Memory) Jobs() []InsertedJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.st.jobs)
}

func (m *Memory) Close() error { return nil }

// Begin starts a snapshot transaction.
func (m *Memory) Begin(_ context.Context) (storage.TxStorage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{parent: m, st: m.st.clone()}
	tx.accessor.holder = tx

	return tx, nil
}

// WithTx runs cb in a snapshot transaction, committing on nil error.
func (m *Memory) WithTx(ctx context.Context, cb func(storage storage.AllStorage) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	if err := cb(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}

type memoryTx struct {
	accessor

	parent *Memory
	st     *state
	done   bool
}

func (t *memoryTx) Commit() error {
	if t.done {
		return storage.ErrNotInTx
	}
	t.done = true

	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.parent.st = t.st

	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return storage.ErrNotInTx
	}
	t.done = true

	return nil
}

// withState serializes access to the underlying state for both the root
// storage and transactions.
func (m *Memory) withState(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(m.st)
}

func (t *memoryTx) withState(fn func(*state) error) error {
	return fn(t.st)
}

type stateHolder interface {
	withState(fn func(*state) error) error
}

var (
	_ storage.Storage    = (*Memory)(nil)
	_ storage.TxStorage  = (*memoryTx)(nil)
	_ stateHolder        = (*Memory)(nil)
	_ storage.AllStorage = (*memoryTx)(nil)
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
