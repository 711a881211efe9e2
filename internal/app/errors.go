package service

import (
	"errors"

	"github.com/okian/taikai/internal/adapters/mq/queue"
	"github.com/okian/taikai/internal/adapters/repository"
	model "github.com/okian/taikai/internal/domain/model"
	"github.com/okian/taikai/internal/domain/scoring"
)

// Error taxonomy exposed to callers. Every error returned by a Service
// operation matches at most one of these with errors.Is.
var (
	// ErrMalformedInput rejects a request before anything is queued.
	ErrMalformedInput = model.ErrMalformedInput
	// ErrStorageUnavailable means the backend failed; durable state is unchanged.
	ErrStorageUnavailable = repository.ErrStorageUnavailable
	// ErrCorruptDocument means a stored document could not be decoded.
	ErrCorruptDocument = repository.ErrCorruptDocument
	// ErrBackpressure means the resource queue was full; retry later.
	ErrBackpressure = queue.ErrBackpressure
	// ErrShuttingDown means the service no longer accepts mutations.
	ErrShuttingDown = queue.ErrClosed
	// ErrUnknownTeam is returned by recompute under the reject policy.
	ErrUnknownTeam = scoring.ErrUnknownTeam
	// ErrNotStarted is returned by mutations before Start.
	ErrNotStarted = errors.New("service not started")
)
