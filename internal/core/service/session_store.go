package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/metrics"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

// SessionDeps are the collaborators of a SessionStore. Terminator,
// Credentials and Persister may be nil.
type SessionDeps struct {
	Profiles    ports.ProfileFetcher
	Terminator  ports.SessionTerminator
	Credentials ports.CredentialStore
	Persister   ports.SessionPersister
}

// SessionStore is the authoritative session state of one browsing context.
//
// Writers are serialised by writeMu so persisted state always matches the
// last applied in-memory state. Logout and ClearAuth advance generation;
// a CheckAuth that started under an older generation is discarded. They
// also record a logout marker in the persister, so stores of other requests
// sharing the browser session discard their checks too.
type SessionStore struct {
	profiles   ports.ProfileFetcher
	terminator ports.SessionTerminator
	creds      ports.CredentialStore
	persister  ports.SessionPersister
	log        zerolog.Logger
	now        func() time.Time

	writeMu sync.Mutex

	mu         sync.RWMutex
	user       *domain.User
	perms      domain.PermissionSet
	loading    int
	verified   bool
	generation uint64
}

func NewSessionStore(deps SessionDeps, log zerolog.Logger) *SessionStore {
	persister := deps.Persister
	if persister == nil {
		persister = nopPersister{}
	}
	return &SessionStore{
		profiles:   deps.Profiles,
		terminator: deps.Terminator,
		creds:      deps.Credentials,
		persister:  persister,
		log:        log,
		now:        time.Now,
		perms:      domain.PermissionSet{},
	}
}

// SetUser replaces the session user and persists the result.
func (s *SessionStore) SetUser(ctx context.Context, u *domain.User) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.applyLocked(u)
	snap := s.persistedLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
}

// CheckAuth verifies the session with the backend. Any failure resolves to
// an anonymous session. The returned snapshot reflects the store after the
// check resolved, which may be a later logout rather than this result.
//
// A logout recorded in the persister by another request after the check
// started also wins: the result is dropped together with any tokens this
// request obtained while checking.
func (s *SessionStore) CheckAuth(ctx context.Context) domain.Session {
	started := s.now()
	s.mu.Lock()
	gen := s.generation
	s.loading++
	s.mu.Unlock()

	user, err := s.profiles.FetchProfile(ctx)
	aborted := false
	if err != nil {
		user = nil
		if ctx.Err() != nil {
			aborted = true
		} else {
			s.log.Debug().Err(err).Msg("session check resolved anonymous")
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	revoked := !aborted && s.revokedSince(ctx, started)

	s.mu.Lock()
	s.loading--
	if aborted || s.generation != gen {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		metrics.SessionChecksTotal.WithLabelValues("stale").Inc()
		return snap
	}
	if revoked {
		user = nil
	}
	s.applyLocked(user)
	persisted := s.persistedLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, persisted)

	// A logout may land between the check above and the save.
	if persisted != nil && s.revokedSince(ctx, started) {
		revoked = true
		s.mu.Lock()
		s.applyLocked(nil)
		snap = s.snapshotLocked()
		s.mu.Unlock()
		s.persist(ctx, nil)
	}

	switch {
	case revoked:
		if s.creds != nil {
			s.creds.Clear()
		}
		metrics.SessionChecksTotal.WithLabelValues("revoked").Inc()
	case snap.IsAuthenticated:
		metrics.SessionChecksTotal.WithLabelValues("authenticated").Inc()
	default:
		metrics.SessionChecksTotal.WithLabelValues("anonymous").Inc()
	}
	return snap
}

// DropIfRevoked ends the local session when another request logged the
// browser session out at or after since. Tokens written during this request
// are expired again. It reports whether that happened.
func (s *SessionStore) DropIfRevoked(ctx context.Context, since time.Time) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.revokedSince(ctx, since) {
		return false
	}
	s.mu.Lock()
	s.applyLocked(nil)
	s.mu.Unlock()
	if s.creds != nil {
		s.creds.Clear()
	}
	return true
}

// Logout ends the session. The backend call is best effort; credentials,
// memory and persisted state are cleared regardless of its outcome.
func (s *SessionStore) Logout(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()

	if s.terminator != nil {
		if err := s.terminator.Terminate(ctx); err != nil {
			s.log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
		}
	}
	if s.creds != nil {
		s.creds.Clear()
	}
	s.reset(ctx)
}

// ClearAuth resets memory and persisted state without calling the backend
// or touching credentials.
func (s *SessionStore) ClearAuth(ctx context.Context) {
	s.reset(ctx)
}

// Restore hydrates the store from the persisted subset. The result is
// unverified and its permissions are recomputed from the stored roles. It
// does nothing once the store has been verified.
func (s *SessionStore) Restore(ctx context.Context) error {
	p, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if p == nil || !p.IsAuthenticated || p.User == nil {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.verified || s.user != nil {
		return nil
	}
	s.user = p.User.Clone()
	s.perms = domain.PermissionsFor(s.user.Roles...)
	s.verified = false

	stored := domain.PermissionSet{}
	for _, perm := range p.Permissions {
		stored[perm] = struct{}{}
	}
	if !stored.Equal(s.perms) {
		s.log.Debug().Str("user_id", s.user.ID).Msg("persisted permissions differ from role table, recomputed")
	}
	return nil
}

// Watch re-verifies the session every interval until ctx is done or the
// returned stop func is called, handing each result to onCheck when set.
// stop waits for an in-progress check.
func (s *SessionStore) Watch(ctx context.Context, interval time.Duration, onCheck func(domain.Session)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := s.CheckAuth(ctx)
				if onCheck != nil && ctx.Err() == nil {
					onCheck(snap)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// Snapshot returns the current state.
func (s *SessionStore) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SessionStore) HasPermission(p domain.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perms.Has(p)
}

func (s *SessionStore) HasRole(r domain.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.HasRole(r)
}

func (s *SessionStore) reset(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.generation++
	s.applyLocked(nil)
	s.mu.Unlock()

	if err := s.persister.Revoke(ctx, s.now()); err != nil {
		s.log.Warn().Err(err).Msg("failed to record session logout")
	}
	if err := s.persister.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear persisted session")
	}
}

func (s *SessionStore) applyLocked(u *domain.User) {
	if u == nil {
		s.user = nil
		s.perms = domain.PermissionSet{}
	} else {
		s.user = u.Clone()
		s.perms = domain.PermissionsFor(s.user.Roles...)
	}
	s.verified = true
}

func (s *SessionStore) snapshotLocked() domain.Session {
	perms := make(domain.PermissionSet, len(s.perms))
	for p := range s.perms {
		perms[p] = struct{}{}
	}
	return domain.Session{
		User:            s.user.Clone(),
		IsAuthenticated: s.user != nil,
		IsLoading:       s.loading > 0,
		Verified:        s.verified,
		Permissions:     perms,
	}
}

// persistedLocked returns the subset to persist, or nil when the session is
// anonymous and storage should be cleared.
func (s *SessionStore) persistedLocked() *domain.PersistedSession {
	if s.user == nil {
		return nil
	}
	return &domain.PersistedSession{
		User:            s.user.Clone(),
		IsAuthenticated: true,
		Permissions:     s.perms.Sorted(),
		SavedAt:         s.now().UTC(),
	}
}

func (s *SessionStore) revokedSince(ctx context.Context, since time.Time) bool {
	revoked, err := s.persister.RevokedSince(ctx, since)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read session logout marker")
		return false
	}
	return revoked
}

func (s *SessionStore) persist(ctx context.Context, p *domain.PersistedSession) {
	var err error
	if p == nil {
		err = s.persister.Clear(ctx)
	} else {
		err = s.persister.Save(ctx, *p)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to persist session")
	}
}

type nopPersister struct{}

func (nopPersister) Load(context.Context) (*domain.PersistedSession, error) { return nil, nil }
func (nopPersister) Save(context.Context, domain.PersistedSession) error    { return nil }
func (nopPersister) Clear(context.Context) error                            { return nil }
func (nopPersister) Revoke(context.Context, time.Time) error                { return nil }
func (nopPersister) RevokedSince(context.Context, time.Time) (bool, error)  { return false, nil }
