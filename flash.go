package kvsession

import (
	"context"
	"slices"
)

const flashPrefix = "_f_"

func flashKey(queue string) string {
	return flashPrefix + queue
}

// flashMessages normalizes a stored queue. After a reload a []string comes
// back as []any from msgpack.
func flashMessages(v any) []string {
	switch msgs := v.(type) {
	case []string:
		return slices.Clone(msgs)
	case []any:
		out := make([]string, 0, len(msgs))
		for _, m := range msgs {
			if s, ok := m.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// Flash appends msg to the named queue. With allowDuplicate false a message
// already queued is not added again; the session is then only refreshed.
func (s *Session) Flash(ctx context.Context, msg, queue string, allowDuplicate bool) error {
	key := flashKey(queue)
	msgs := flashMessages(s.values[key])
	if !allowDuplicate && slices.Contains(msgs, msg) {
		return s.touch(ctx)
	}
	s.values[key] = append(msgs, msg)
	return s.Changed(ctx)
}

// PeekFlash returns the queued messages without removing them.
func (s *Session) PeekFlash(ctx context.Context, queue string) ([]string, error) {
	return read(ctx, s, func() []string {
		return flashMessages(s.values[flashKey(queue)])
	})
}

// PopFlash returns the queued messages and empties the queue.
func (s *Session) PopFlash(ctx context.Context, queue string) ([]string, error) {
	return mutate(ctx, s, func() []string {
		key := flashKey(queue)
		msgs := flashMessages(s.values[key])
		delete(s.values, key)
		return msgs
	})
}
