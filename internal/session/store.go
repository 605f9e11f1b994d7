package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/unicred/unicred-cli/internal/storage"
)

// Role selects which portal surface a signed-in user sees.
type Role string

const (
	RoleStudent  Role = "STUDENT"
	RoleTeacher  Role = "TEACHER"
	RoleVerifier Role = "VERIFIER"
	RoleGuest    Role = "GUEST"
)

// ParseRole maps a stored role string onto the closed role set.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleStudent, RoleTeacher, RoleVerifier, RoleGuest:
		return Role(raw), true
	}
	return RoleGuest, false
}

// Profile is the signed-in user's identity as reported by the server.
type Profile struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	UserName string `json:"userName"`
	Role     Role   `json:"role"`
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	Profile      *Profile
}

// Authenticated reports whether the snapshot carries a credential pair.
func (s Snapshot) Authenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Role returns the session role, or RoleGuest when signed out.
func (s Snapshot) Role() Role {
	if s.Profile == nil {
		return RoleGuest
	}
	return s.Profile.Role
}

// AuthData is the payload of a session mutation. Both tokens are required;
// Profile is optional and, when nil, the previously stored profile is kept
// (the refresh endpoint returns tokens only).
type AuthData struct {
	AccessToken  string
	RefreshToken string
	Profile      *Profile
}

// Persister durably stores the session record between process runs.
type Persister interface {
	Save(rec storage.Record) error
	Load() (storage.Record, bool, error)
	Wipe() error
}

// Store is the process-wide session container.
//
// Writers are the login flow, the token refresher and the logout flow;
// readers are the request pipeline on every call and the UI layer for
// role-based routing. Every mutation persists before subscribers are
// notified, and mutation+persistence run atomically under one mutex.
//
// Store never performs network calls.
type Store struct {
	mu        sync.Mutex
	state     Snapshot
	persister Persister

	nextSubID   int
	subscribers map[int]func(Snapshot)
}

// NewStore creates a store and rehydrates the previous session from the
// persister. A nil persister gives an in-memory store.
func NewStore(p Persister) (*Store, error) {
	s := &Store{
		persister:   p,
		subscribers: make(map[int]func(Snapshot)),
	}
	if p == nil {
		return s, nil
	}

	rec, ok, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("rehydrate session: %w", err)
	}
	if !ok {
		return s, nil
	}

	// Tokens are set and cleared together. A record with half a pair is
	// treated as signed out.
	if rec.Token == "" || rec.RefreshToken == "" {
		return s, nil
	}

	s.state = Snapshot{
		AccessToken:  rec.Token,
		RefreshToken: rec.RefreshToken,
	}
	if rec.UserData != "" {
		var profile Profile
		if err := json.Unmarshal([]byte(rec.UserData), &profile); err == nil {
			s.state.Profile = &profile
		}
	}
	return s, nil
}

// Current returns a copy of the in-memory session state.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetAuthData atomically replaces the credential fields, persists the new
// state and notifies subscribers.
//
// When persistence fails the in-memory state is still replaced (a refreshed
// token must stay usable for the request that triggered the refresh) and the
// persistence error is returned for the caller to log.
func (s *Store) SetAuthData(data AuthData) error {
	if data.AccessToken == "" || data.RefreshToken == "" {
		return fmt.Errorf("access and refresh tokens must be set together")
	}

	s.mu.Lock()
	next := Snapshot{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		Profile:      data.Profile,
	}
	if next.Profile == nil {
		next.Profile = s.state.Profile
	}

	persistErr := s.persist(next)
	s.state = next
	subs := s.subscriberList()
	s.mu.Unlock()

	notify(subs, next)
	return persistErr
}

// Clear atomically wipes the session. Clearing an already-empty session is a
// no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	if s.state == (Snapshot{}) {
		s.mu.Unlock()
		return nil
	}

	var wipeErr error
	if s.persister != nil {
		wipeErr = s.persister.Wipe()
	}
	s.state = Snapshot{}
	subs := s.subscriberList()
	s.mu.Unlock()

	notify(subs, Snapshot{})
	return wipeErr
}

// Subscribe registers a listener invoked after every state change with the
// new snapshot. The returned function unsubscribes it.
//
// Listeners run outside the store lock and may call Current.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// persist writes the snapshot through the persister. Callers hold s.mu.
func (s *Store) persist(snap Snapshot) error {
	if s.persister == nil {
		return nil
	}

	rec := storage.Record{
		Token:        snap.AccessToken,
		RefreshToken: snap.RefreshToken,
	}
	if snap.Profile != nil {
		userData, err := json.Marshal(snap.Profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		rec.UserData = string(userData)
		rec.Role = string(snap.Profile.Role)
	}
	return s.persister.Save(rec)
}

// subscriberList copies the subscriber set. Callers hold s.mu.
func (s *Store) subscriberList() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
