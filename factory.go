package kvsession

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ResponseCallback runs once when the response status is known, before any
// header is written.
type ResponseCallback func(w http.ResponseWriter, status int)

// Callbacks is the hook the HTTP layer offers for deferred response changes.
type Callbacks interface {
	AddResponseCallback(fn ResponseCallback)
}

// Factory opens sessions for incoming requests. It owns the store for its
// whole lifetime and closes it in Close.
type Factory struct {
	store     Store
	signer    *Signer
	allocator *Allocator
	codec     Codec
	logger    *slog.Logger

	timeout       time.Duration
	refreshPeriod time.Duration
	maxBytes      int

	cookie            string
	cookieMaxAge      int
	cookiePath        string
	cookieDomain      string
	secure            *bool
	httpOnly          bool
	sameSite          http.SameSite
	cookieOnException bool

	cleanup  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	closeErr error
}

// NewFactory validates cfg and creates a Factory over store.
func NewFactory(store Store, cfg Config) (*Factory, error) {
	signer, err := NewSigner([]byte(cfg.Secret))
	if err != nil {
		return nil, err
	}

	if cfg.CookieName == "" {
		cfg.CookieName = "session"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	// Zero means unset; a negative timeout asks for sessions that never expire.
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	} else if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.Codec == nil {
		cfg.Codec = MsgpackCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Factory{
		store:             store,
		signer:            signer,
		allocator:         NewAllocator(store, cfg.Codec, cfg.MaxAllocAttempts, cfg.Logger),
		codec:             cfg.Codec,
		logger:            cfg.Logger,
		timeout:           cfg.Timeout,
		refreshPeriod:     cfg.RefreshPeriod,
		maxBytes:          cfg.MaxSessionBytes,
		cookie:            cfg.CookieName,
		cookieMaxAge:      cfg.CookieMaxAge,
		cookiePath:        cfg.CookiePath,
		cookieDomain:      cfg.CookieDomain,
		secure:            cfg.CookieSecure,
		httpOnly:          true,
		sameSite:          http.SameSiteLaxMode,
		cookieOnException: true,
		cleanup:           cfg.CleanupInterval,
		stopChan:          make(chan struct{}),
	}

	if cfg.CookieHTTPOnly != nil {
		f.httpOnly = *cfg.CookieHTTPOnly
	}
	if cfg.CookieOnException != nil {
		f.cookieOnException = *cfg.CookieOnException
	}
	if cfg.CookieSameSite != 0 {
		f.sameSite = cfg.CookieSameSite
	}

	// Browsers reject SameSite=None cookies without the Secure attribute.
	if f.sameSite == http.SameSiteNoneMode {
		secure := true
		f.secure = &secure
	}

	if cleaner, ok := store.(Cleaner); ok && f.cleanup > 0 {
		go f.cleanupWorker(cleaner)
	}

	return f, nil
}

func (f *Factory) cleanupWorker(cleaner Cleaner) {
	ticker := time.NewTicker(f.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := cleaner.Cleanup(ctx); err != nil {
				f.logger.Warn("session cleanup failed", slog.Any("error", err))
			}
			cancel()
		case <-f.stopChan:
			return
		}
	}
}

// Close stops the cleanup worker and closes the store. Later calls return the
// result of the first one.
func (f *Factory) Close() error {
	f.stopOnce.Do(func() {
		close(f.stopChan)
		f.closeErr = f.store.Close()
	})
	return f.closeErr
}

// Signer returns the signer used for session cookies.
func (f *Factory) Signer() *Signer {
	return f.signer
}

// Open returns the session for r.
//
// A cookie with a valid signature whose ID still exists in the store resumes
// that session. Anything else (no cookie, a bad signature, an expired ID)
// starts a new session and schedules its cookie on cb. Store errors are
// returned as is. cb must not be nil; ErrNoCallbacks is returned otherwise.
func (f *Factory) Open(ctx context.Context, r *http.Request, cb Callbacks) (*Session, error) {
	if cb == nil {
		return nil, ErrNoCallbacks
	}
	params := sessionParams{
		timeout:       f.timeout,
		refreshPeriod: f.refreshPeriod,
		maxBytes:      f.maxBytes,
		codec:         f.codec,
		deleteCookie:  func() { cb.AddResponseCallback(f.deleteCookieCallback(r)) },
	}

	if id, ok := f.sessionIDFromRequest(ctx, r); ok {
		exists, err := f.store.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return loadSession(ctx, f.store, id, params)
		}
		f.logger.DebugContext(ctx, "session expired, starting a new one", slog.String("session_id", id))
	}

	id, err := f.allocator.Allocate(ctx, f.timeout)
	if err != nil {
		return nil, err
	}
	cb.AddResponseCallback(f.setCookieCallback(r, id))

	s, err := loadSession(ctx, f.store, id, params)
	if err != nil {
		return nil, err
	}
	s.isNew = true
	s.lastSync = time.Now()
	f.logger.DebugContext(ctx, "new session allocated", slog.String("session_id", id))
	return s, nil
}

func (f *Factory) sessionIDFromRequest(ctx context.Context, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(f.cookie)
	if err != nil {
		return "", false
	}
	id, err := f.signer.Verify(cookie.Value)
	if err != nil {
		f.logger.DebugContext(ctx, "rejected session cookie", slog.Any("error", err))
		return "", false
	}
	if !isValidID(id) {
		f.logger.DebugContext(ctx, "rejected session cookie", slog.Any("error", ErrInvalidSignature))
		return "", false
	}
	return id, true
}

func (f *Factory) setCookieCallback(r *http.Request, id string) ResponseCallback {
	return func(w http.ResponseWriter, status int) {
		if status >= http.StatusInternalServerError && !f.cookieOnException {
			return
		}
		c := f.baseCookie(r)
		c.Value = f.signer.Sign(id)
		c.MaxAge = f.cookieMaxAge
		if f.cookieMaxAge > 0 {
			c.Expires = time.Now().Add(time.Duration(f.cookieMaxAge) * time.Second)
		}
		http.SetCookie(w, c)
	}
}

func (f *Factory) deleteCookieCallback(r *http.Request) ResponseCallback {
	return func(w http.ResponseWriter, _ int) {
		c := f.baseCookie(r)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (f *Factory) baseCookie(r *http.Request) *http.Cookie {
	secure := r.TLS != nil
	if f.secure != nil {
		secure = *f.secure
	}
	return &http.Cookie{
		Name:     f.cookie,
		Path:     f.cookiePath,
		Domain:   f.cookieDomain,
		HttpOnly: f.httpOnly,
		Secure:   secure,
		SameSite: f.sameSite,
	}
}
