package kvsession

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"hash"
)

// Signer binds session IDs to a server secret.
// A signed value is base32(HMAC(secret, id)) followed by the raw id.
type Signer struct {
	secret   []byte
	hash     func() hash.Hash
	sigWidth int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithHash replaces the default SHA-1 digest, e.g. WithHash(sha256.New).
func WithHash(h func() hash.Hash) SignerOption {
	return func(s *Signer) {
		if h != nil {
			s.hash = h
		}
	}
}

// NewSigner creates a Signer for the given secret.
func NewSigner(secret []byte, opts ...SignerOption) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	s := &Signer{
		secret: append([]byte(nil), secret...),
		hash:   sha1.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sigWidth = base32.StdEncoding.EncodedLen(s.hash().Size())
	return s, nil
}

// SignatureWidth is the length of the encoded signature prefix.
// It is 32 for the default SHA-1 digest.
func (s *Signer) SignatureWidth() int {
	return s.sigWidth
}

// Sign returns the cookie value for id.
func (s *Signer) Sign(id string) string {
	return s.signature(id) + id
}

// Verify checks a cookie value and returns the embedded id.
// The signature comparison runs in constant time.
func (s *Signer) Verify(value string) (string, error) {
	if len(value) < s.sigWidth {
		return "", ErrInvalidSignature
	}
	got, id := value[:s.sigWidth], value[s.sigWidth:]
	want := s.signature(id)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return "", ErrInvalidSignature
	}
	return id, nil
}

func (s *Signer) signature(id string) string {
	mac := hmac.New(s.hash, s.secret)
	mac.Write([]byte(id))
	return base32.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignID signs id with secret using HMAC-SHA1.
func SignID(id, secret string) (string, error) {
	s, err := NewSigner([]byte(secret))
	if err != nil {
		return "", err
	}
	return s.Sign(id), nil
}

// VerifyID is the inverse of SignID.
func VerifyID(value, secret string) (string, error) {
	s, err := NewSigner([]byte(secret))
	if err != nil {
		return "", err
	}
	return s.Verify(value)
}
