package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"civicsync/apperr"
	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type State int

const (
	StateAnonymous State = iota
	// StateLoading means a stored credential is being exchanged for a
	// profile. Callers must not treat it as anonymous.
	StateLoading
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is the identity context for one user of the client. It is created
// once, started once, and passed explicitly to everything that needs to know
// who is signed in.
type Session struct {
	backend AuthBackend
	creds   CredentialStore
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	principal *models.Principal
	token     string
	epoch     uint64
	err       error
	started   bool
	ready     chan struct{}
	readyOnce sync.Once
}

type SessionOption func(*Session)

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

func NewSession(backend AuthBackend, creds CredentialStore, opts ...SessionOption) *Session {
	s := &Session{
		backend: backend,
		creds:   creds,
		logger:  slog.Default(),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start reads the stored credential. If there is one, the session stays in
// StateLoading while the profile exchange runs in the background. Calling
// Start again is a no-op.
func (s *Session) Start(ctx context.Context) {
	token, err := s.creds.Load()
	if err != nil {
		s.logger.WarnContext(ctx, "reading stored credential", "error", err)
		token = ""
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	if token == "" {
		s.state = StateAnonymous
		s.mu.Unlock()
		s.markReady()
		return
	}
	s.state = StateLoading
	s.token = token
	epoch := s.epoch
	s.mu.Unlock()

	go s.exchange(ctx, token, epoch)
}

func (s *Session) exchange(ctx context.Context, token string, epoch uint64) {
	defer s.markReady()

	principal, err := s.backend.Profile(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// A login or logout finished first; it owns the state now.
		return
	}
	if err == nil {
		s.state = StateAuthenticated
		s.principal = principal
		return
	}

	if apperr.Retryable(err) {
		// Server unreachable: keep the stored credential for the next start.
		s.logger.WarnContext(ctx, "session restore failed", "error", err)
		s.clearLocked(err)
		return
	}
	s.logger.InfoContext(ctx, "stored credential rejected", "error", err)
	if cerr := s.creds.Clear(); cerr != nil {
		s.logger.WarnContext(ctx, "clearing stored credential", "error", cerr)
	}
	s.clearLocked(apperr.E(apperr.Unauthenticated, apperr.MsgSessionExpired))
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Wait blocks until the session has left StateLoading.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsLoading() bool { return s.State() == StateLoading }

func (s *Session) IsAuthenticated() bool { return s.State() == StateAuthenticated }

// CurrentPrincipal returns a copy of the signed-in principal, or nil.
func (s *Session) CurrentPrincipal() *models.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated || s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Actor is the signed-in principal's id, or the zero id.
func (s *Session) Actor() primitive.ObjectID {
	if p := s.CurrentPrincipal(); p != nil {
		return p.ID
	}
	return primitive.NilObjectID
}

// Token implements TokenSource.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Epoch changes every time the signed-in identity changes. Work started
// under one epoch must not be applied under another.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Err is the last session-level problem, such as an expired session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

func (s *Session) Login(ctx context.Context, email, password string) (*models.Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Validationf("Please enter your email and password")
	}
	res, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, res), nil
}

func (s *Session) Register(ctx context.Context, name, email, password string) (*models.Principal, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	switch {
	case name == "":
		return nil, apperr.Validationf("Please enter your name")
	case email == "":
		return nil, apperr.Validationf("Please enter your email")
	case len(password) < 6:
		return nil, apperr.Validationf("Password must be at least 6 characters")
	}
	res, err := s.backend.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, res), nil
}

func (s *Session) establish(ctx context.Context, res *models.AuthResult) *models.Principal {
	if err := s.creds.Save(res.Token); err != nil {
		s.logger.WarnContext(ctx, "saving credential", "error", err)
	}

	s.mu.Lock()
	s.epoch++
	s.state = StateAuthenticated
	s.token = res.Token
	user := res.User
	s.principal = &user
	s.err = nil
	s.started = true
	s.mu.Unlock()

	s.markReady()
	p := user
	return &p
}

// Logout clears the session locally, then asks the server to revoke the
// credential. The local state is cleared even when revocation fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.clearLocked(nil)
	s.mu.Unlock()
	s.markReady()

	if err := s.creds.Clear(); err != nil {
		s.logger.WarnContext(ctx, "clearing stored credential", "error", err)
	}
	if err := s.backend.Logout(ctx, token); err != nil {
		return apperr.Wrap(apperr.KindOf(err), "Signed out locally, but the server could not revoke the session", err)
	}
	return nil
}

// Invalidate ends the session after the server rejected its credential.
func (s *Session) Invalidate(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateAnonymous {
		s.mu.Unlock()
		return
	}
	s.clearLocked(apperr.E(apperr.Unauthenticated, apperr.MsgSessionExpired))
	s.mu.Unlock()
	s.markReady()

	if err := s.creds.Clear(); err != nil {
		s.logger.WarnContext(ctx, "clearing stored credential", "error", err)
	}
}

func (s *Session) clearLocked(err error) {
	s.epoch++
	s.state = StateAnonymous
	s.principal = nil
	s.token = ""
	s.err = err
}
