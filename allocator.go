package kvsession

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxAllocAttempts bounds the SetNX loop in Allocate.
const DefaultMaxAllocAttempts = 16

// Allocator mints session IDs and reserves them in the store.
type Allocator struct {
	store       Store
	codec       Codec
	maxAttempts int
	logger      *slog.Logger
}

// NewAllocator creates an Allocator. A non-positive maxAttempts uses
// DefaultMaxAllocAttempts.
func NewAllocator(store Store, codec Codec, maxAttempts int, logger *slog.Logger) *Allocator {
	if codec == nil {
		codec = MsgpackCodec{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAllocAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		store:       store,
		codec:       codec,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Allocate reserves a fresh ID holding an empty payload.
// The key expires after timeout unless timeout is zero.
// Existing keys are never overwritten.
func (a *Allocator) Allocate(ctx context.Context, timeout time.Duration) (string, error) {
	empty, err := encodeRecord(a.codec, map[string]any{}, false)
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		id, err := generateID()
		if err != nil {
			return "", err
		}

		ok, err := a.store.SetNX(ctx, id, empty)
		if err != nil {
			return "", err
		}
		if !ok {
			a.logger.WarnContext(ctx, "session id collision, retrying",
				slog.Int("attempt", attempt))
			continue
		}

		if timeout > 0 {
			if err := a.store.Expire(ctx, id, timeout); err != nil {
				return "", err
			}
		}
		return id, nil
	}

	return "", fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, a.maxAttempts)
}
