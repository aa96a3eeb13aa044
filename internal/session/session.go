// Package session provides Redis-backed browser session persistence.
//
// A session carries the authenticated user id and role, plus the pending
// one-time-code challenge issued by registration or password reset. It is
// the only per-request mutable state in the system; handlers load it, pass
// it into the account lifecycle explicitly, and save it back. Two concurrent
// OTP issuances for the same session race; last write wins.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/icard-hq/apiserver/internal/auth"
	"github.com/icard-hq/apiserver/types"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("session not found")

const keyPrefix = "sess:"

// Session is the per-browser authentication context.
type Session struct {
	ID     string           `json:"-"`
	UserID int              `json:"user_id,omitempty"`
	Role   types.Role       `json:"role,omitempty"`
	OTP    *auth.PendingOTP `json:"otp,omitempty"`

	// staleID holds the pre-rotation id until Save discards its stored state.
	staleID string
}

// Authenticated reports whether a user id is present. Its presence is the
// sole condition for treating the request as authenticated.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID > 0
}

// SignIn binds the session to a user. The session id is rotated so an id
// handed out before authentication never names a signed-in session.
func (s *Session) SignIn(userID int, role types.Role) {
	if s.ID != "" && s.staleID == "" {
		s.staleID = s.ID
	}
	s.ID = uuid.NewString()
	s.UserID = userID
	s.Role = role
}

// SetOTP replaces any pending challenge with a new one.
func (s *Session) SetOTP(otp auth.PendingOTP) {
	s.OTP = &otp
}

// ClearOTP discards the pending challenge.
func (s *Session) ClearOTP() {
	s.OTP = nil
}

// Store persists sessions in Redis with a fixed TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// New creates an empty session with a fresh opaque id. The session is not
// persisted until Save.
func (st *Store) New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Get loads the session for the given id.
func (st *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := st.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess := &Session{ID: id}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save writes the session back and refreshes its TTL. After an id
// rotation the state stored under the old id is removed.
func (st *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := st.client.Set(ctx, keyPrefix+sess.ID, data, st.ttl).Err(); err != nil {
		return err
	}
	if sess.staleID != "" && sess.staleID != sess.ID {
		if err := st.client.Del(ctx, keyPrefix+sess.staleID).Err(); err != nil {
			return err
		}
	}
	sess.staleID = ""
	return nil
}

// Delete removes the session entirely. Deleting an absent session is not
// an error.
func (st *Store) Delete(ctx context.Context, id string) error {
	return st.client.Del(ctx, keyPrefix+id).Err()
}
