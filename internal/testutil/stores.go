// Package testutil provides in-memory doubles for the persistence and
// registry interfaces used across the sync pipeline tests.
package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// MemFingerprintStore is an in-memory entity.FingerprintStore.
type MemFingerprintStore struct {
	mu      sync.Mutex
	records map[string]*entity.FingerprintRecord

	// FailNext makes the next call return this error, then clears it.
	FailNext error
}

func NewMemFingerprintStore() *MemFingerprintStore {
	return &MemFingerprintStore{records: make(map[string]*entity.FingerprintRecord)}
}

func storeKey(kind entity.Kind, key entity.NaturalKey) string {
	return kind.String() + "\x00" + string(key)
}

func (s *MemFingerprintStore) takeErr() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *MemFingerprintStore) Get(_ context.Context, kind entity.Kind, key entity.NaturalKey) (*entity.FingerprintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	rec, ok := s.records[storeKey(kind, key)]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (s *MemFingerprintStore) List(_ context.Context) ([]*entity.FingerprintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	out := make([]*entity.FingerprintRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *MemFingerprintStore) Put(_ context.Context, rec *entity.FingerprintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	s.records[storeKey(rec.Kind, rec.Key)] = rec.Clone()
	return nil
}

func (s *MemFingerprintStore) Delete(_ context.Context, kind entity.Kind, key entity.NaturalKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	delete(s.records, storeKey(kind, key))
	return nil
}

// Seed inserts records directly, bypassing failure injection.
func (s *MemFingerprintStore) Seed(recs ...*entity.FingerprintRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.records[storeKey(rec.Kind, rec.Key)] = rec.Clone()
	}
}

// Len reports the number of stored records.
func (s *MemFingerprintStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// MemAuditLog is an in-memory entity.AuditLog.
type MemAuditLog struct {
	mu      sync.Mutex
	Records []*entity.AuditRecord
	Runs    []*entity.RunSummary
}

func NewMemAuditLog() *MemAuditLog {
	return &MemAuditLog{}
}

func (l *MemAuditLog) Append(_ context.Context, rec *entity.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Records = append(l.Records, rec)
	return nil
}

func (l *MemAuditLog) RecordRun(_ context.Context, s *entity.RunSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Runs = append(l.Runs, s)
	return nil
}

func (l *MemAuditLog) LastRun(_ context.Context) (*entity.RunSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Runs) == 0 {
		return nil, nil
	}
	return l.Runs[len(l.Runs)-1], nil
}

func (l *MemAuditLog) RecordsForRun(_ context.Context, runID uuid.UUID) ([]*entity.AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*entity.AuditRecord
	for _, rec := range l.Records {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	return out, nil
}
