package kvsession

import (
	"context"
	"iter"
	"maps"
	"slices"
	"time"
)

// Session is the in-memory view of one stored session.
//
// Mutating methods write the whole payload back to the store before they
// return. Read-only methods slide the key's expiration forward unless the
// session is in indefinite mode. A Session belongs to a single request and is
// not safe for concurrent use.
type Session struct {
	id             string
	values         map[string]any
	indefinite     bool
	timeout        time.Duration
	defaultTimeout time.Duration
	refreshPeriod  time.Duration
	maxBytes       int
	lastSync       time.Time
	isNew          bool
	createdAt      time.Time

	store        Store
	codec        Codec
	deleteCookie func()
}

type sessionParams struct {
	timeout       time.Duration
	refreshPeriod time.Duration
	maxBytes      int
	codec         Codec
	deleteCookie  func()
}

// loadSession reads the record stored at id. A missing key yields an empty
// session: freshly allocated IDs and expired ones look the same.
func loadSession(ctx context.Context, store Store, id string, p sessionParams) (*Session, error) {
	if p.codec == nil {
		p.codec = MsgpackCodec{}
	}

	s := &Session{
		id:             id,
		values:         make(map[string]any),
		timeout:        p.timeout,
		defaultTimeout: p.timeout,
		refreshPeriod:  p.refreshPeriod,
		maxBytes:       p.maxBytes,
		createdAt:      time.Now(),
		store:          store,
		codec:          p.codec,
		deleteCookie:   p.deleteCookie,
	}

	data, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return s, nil
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return nil, ErrSessionTooLarge
	}

	rec, err := decodeRecord(s.codec, data)
	if err != nil {
		return nil, err
	}
	s.values = rec.Values
	if rec.Indefinite {
		s.indefinite = true
		s.timeout = 0
	}
	return s, nil
}

// commit persists the full payload, with a TTL unless the session never expires.
func (s *Session) commit(ctx context.Context) error {
	data, err := encodeRecord(s.codec, s.values, s.indefinite)
	if err != nil {
		return err
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return ErrSessionTooLarge
	}
	if s.timeout > 0 {
		err = s.store.SetEx(ctx, s.id, data, s.timeout)
	} else {
		err = s.store.Set(ctx, s.id, data)
	}
	if err != nil {
		return err
	}
	s.lastSync = time.Now()
	return nil
}

// touch slides the expiration window. Indefinite sessions are left alone, and
// with a refresh period set, touches closer together than the period collapse.
func (s *Session) touch(ctx context.Context) error {
	if s.timeout <= 0 {
		return nil
	}
	if s.refreshPeriod > 0 && time.Since(s.lastSync) < s.refreshPeriod {
		return nil
	}
	if err := s.store.Expire(ctx, s.id, s.timeout); err != nil {
		return err
	}
	s.lastSync = time.Now()
	return nil
}

// mutate applies fn to the in-memory payload and then commits it.
func mutate[T any](ctx context.Context, s *Session, fn func() T) (T, error) {
	result := fn()
	return result, s.commit(ctx)
}

// read computes fn and then touches the key.
func read[T any](ctx context.Context, s *Session, fn func() T) (T, error) {
	result := fn()
	return result, s.touch(ctx)
}

func (s *Session) apply(ctx context.Context, fn func()) error {
	_, err := mutate(ctx, s, func() struct{} {
		fn()
		return struct{}{}
	})
	return err
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool { return s.isNew }

// CreatedAt returns when this in-memory session was constructed.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Timeout returns the current sliding expiration window; zero means the
// session never expires.
func (s *Session) Timeout() time.Duration { return s.timeout }

// DefaultTimeout returns the configured timeout restored by SetTimeout.
func (s *Session) DefaultTimeout() time.Duration { return s.defaultTimeout }

// Indefinite reports whether DontExpire is in effect.
func (s *Session) Indefinite() bool { return s.indefinite }

// Set stores value under key.
func (s *Session) Set(ctx context.Context, key string, value any) error {
	return s.apply(ctx, func() { s.values[key] = value })
}

// Delete removes key. Deleting a missing key still persists the payload.
func (s *Session) Delete(ctx context.Context, key string) error {
	return s.apply(ctx, func() { delete(s.values, key) })
}

// Clear removes every value. The expiration mode is kept: a session in
// indefinite mode stays there until SetTimeout or Invalidate, even across
// reloads, since the mode is stored beside the values rather than among them.
func (s *Session) Clear(ctx context.Context) error {
	return s.apply(ctx, func() { clear(s.values) })
}

// Pop removes key and returns its value, or def if it was absent.
func (s *Session) Pop(ctx context.Context, key string, def any) (any, error) {
	return mutate(ctx, s, func() any {
		v, ok := s.values[key]
		if !ok {
			return def
		}
		delete(s.values, key)
		return v
	})
}

// Update copies every entry of other into the session.
func (s *Session) Update(ctx context.Context, other map[string]any) error {
	return s.apply(ctx, func() { maps.Copy(s.values, other) })
}

// SetDefault returns the value at key, storing def first if key is absent.
func (s *Session) SetDefault(ctx context.Context, key string, def any) (any, error) {
	return mutate(ctx, s, func() any {
		if v, ok := s.values[key]; ok {
			return v
		}
		s.values[key] = def
		return def
	})
}

// PopItem removes and returns the entry with the smallest key.
// It returns ErrEmptySession, without writing, when there is nothing to pop.
func (s *Session) PopItem(ctx context.Context) (string, any, error) {
	if len(s.values) == 0 {
		return "", nil, ErrEmptySession
	}
	key := slices.Min(slices.Collect(maps.Keys(s.values)))
	v, err := s.Pop(ctx, key, nil)
	return key, v, err
}

// Changed persists the payload as is. Call it after mutating a value in place,
// such as appending to a stored slice.
func (s *Session) Changed(ctx context.Context) error {
	return s.apply(ctx, func() {})
}

// SetTimeout leaves indefinite mode and restores the default timeout.
func (s *Session) SetTimeout(ctx context.Context) error {
	return s.apply(ctx, func() {
		s.timeout = s.defaultTimeout
		s.indefinite = false
	})
}

// DontExpire switches the session to indefinite mode. The mode is stored with
// the payload and honored by later loads.
func (s *Session) DontExpire(ctx context.Context) error {
	return s.apply(ctx, func() {
		s.timeout = 0
		s.indefinite = true
	})
}

// Invalidate empties the session and schedules deletion of the cookie.
// The store key is kept; it now holds an empty payload and expires on the
// default timeout. The cookie is deleted even if the write fails.
func (s *Session) Invalidate(ctx context.Context) error {
	err := s.apply(ctx, func() {
		clear(s.values)
		s.indefinite = false
		s.timeout = s.defaultTimeout
	})
	if s.deleteCookie != nil {
		s.deleteCookie()
	}
	return err
}

// Get returns the value stored under key.
func (s *Session) Get(ctx context.Context, key string) (any, bool, error) {
	var ok bool
	v, err := read(ctx, s, func() any {
		var v any
		v, ok = s.values[key]
		return v
	})
	return v, ok, err
}

// Contains reports whether key is present.
func (s *Session) Contains(ctx context.Context, key string) (bool, error) {
	return read(ctx, s, func() bool {
		_, ok := s.values[key]
		return ok
	})
}

// Len returns the number of values.
func (s *Session) Len(ctx context.Context) (int, error) {
	return read(ctx, s, func() int { return len(s.values) })
}

// Keys returns the keys in sorted order.
func (s *Session) Keys(ctx context.Context) ([]string, error) {
	return read(ctx, s, func() []string {
		return slices.Sorted(maps.Keys(s.values))
	})
}

// Values returns the values ordered by key.
func (s *Session) Values(ctx context.Context) ([]any, error) {
	return read(ctx, s, func() []any {
		keys := slices.Sorted(maps.Keys(s.values))
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, s.values[k])
		}
		return out
	})
}

// Items returns a shallow copy of the payload.
func (s *Session) Items(ctx context.Context) (map[string]any, error) {
	return read(ctx, s, func() map[string]any { return maps.Clone(s.values) })
}

// All returns an iterator over a snapshot of the payload.
func (s *Session) All(ctx context.Context) (iter.Seq2[string, any], error) {
	return read(ctx, s, func() iter.Seq2[string, any] {
		return maps.All(maps.Clone(s.values))
	})
}
