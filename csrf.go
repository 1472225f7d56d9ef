package kvsession

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
)

const (
	csrfKey          = "_csrft_"
	csrfTokenEntropy = 20
)

// NewCSRFToken stores and returns a fresh random token.
func (s *Session) NewCSRFToken(ctx context.Context) (string, error) {
	b := make([]byte, csrfTokenEntropy)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	token := base64.StdEncoding.EncodeToString(b)
	if err := s.Set(ctx, csrfKey, token); err != nil {
		return "", err
	}
	return token, nil
}

// GetCSRFToken returns the current token, creating one if the session has none.
func (s *Session) GetCSRFToken(ctx context.Context) (string, error) {
	v, ok, err := s.Get(ctx, csrfKey)
	if err != nil {
		return "", err
	}
	if token, isString := v.(string); ok && isString {
		return token, nil
	}
	return s.NewCSRFToken(ctx)
}
