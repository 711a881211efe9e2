package repository

import (
	"context"

	"github.com/okian/taikai/internal/adapters/storage"
	dedupe "github.com/okian/taikai/internal/domain/dedupe"
	model "github.com/okian/taikai/internal/domain/model"
)

// LedgerStore holds the score ledger and an index of its identity keys.
// Append and Replace must not run concurrently with each other.
type LedgerStore struct {
	doc     *Document[[]model.ScoreRecord]
	index   dedupe.Deduper
	indexed bool
}

// NewLedgerStore returns the ledger document. It reads as empty until written.
func NewLedgerStore(b storage.Backend, opts ...LedgerOption) *LedgerStore {
	s := &LedgerStore{
		doc: NewDocument(b, EventScoresKey,
			func() []model.ScoreRecord { return []model.ScoreRecord{} },
			model.CloneScores,
		),
		index: dedupe.NewInMemoryDeduper(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the ledger and rebuilds the identity index from it.
func (s *LedgerStore) Load(ctx context.Context) error {
	if err := s.doc.Load(ctx); err != nil {
		return err
	}
	records, err := s.doc.Read(ctx)
	if err != nil {
		return err
	}
	s.index.Reset(ctx, dedupe.Keys(records))
	s.indexed = true
	return nil
}

// Read returns a copy of the committed ledger in submission order.
func (s *LedgerStore) Read(ctx context.Context) ([]model.ScoreRecord, error) {
	return s.doc.Read(ctx)
}

// Append stores r unless a record with the same identity key exists.
// It reports whether r was stored. On error nothing changes.
func (s *LedgerStore) Append(ctx context.Context, r model.ScoreRecord) (bool, error) {
	if !s.indexed {
		if err := s.Load(ctx); err != nil {
			return false, err
		}
	}

	key := dedupe.Key(r)
	if s.index.SeenAndRecord(ctx, key) {
		return false, nil
	}

	records, err := s.doc.Read(ctx)
	if err != nil {
		s.index.Unrecord(ctx, key)
		return false, err
	}
	if err := s.doc.Write(ctx, append(records, r)); err != nil {
		s.index.Unrecord(ctx, key)
		return false, err
	}
	return true, nil
}

// Replace overwrites the whole ledger with records, duplicates included.
func (s *LedgerStore) Replace(ctx context.Context, records []model.ScoreRecord) error {
	if err := s.doc.Write(ctx, records); err != nil {
		return err
	}
	s.index.Reset(ctx, dedupe.Keys(records))
	s.indexed = true
	return nil
}

// IndexSize returns the number of distinct identity keys in the ledger.
func (s *LedgerStore) IndexSize() int64 {
	return s.index.Size()
}
