// Package repository keeps the shared documents of the service and their committed state.
package repository

import dedupe "github.com/okian/taikai/internal/domain/dedupe"

// LedgerOption applies a configuration option to the LedgerStore.
type LedgerOption func(*LedgerStore)

// WithDeduper sets the identity index used to reject duplicate submissions.
func WithDeduper(d dedupe.Deduper) LedgerOption {
	return func(s *LedgerStore) {
		if d != nil {
			s.index = d
		}
	}
}
