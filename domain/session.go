package domain

import "time"

// Session is the identity asserted by a verified token. It is never stored server side;
// only the token ID is remembered once the token is revoked.
type Session struct {
	TokenID   string    `json:"jti"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// Remaining returns how long the session stays valid after reference.
func (s *Session) Remaining(reference time.Time) time.Duration {
	if s.IsExpired(reference) {
		return 0
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return s.ExpiresAt.Sub(reference)
}
