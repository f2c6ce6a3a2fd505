package models

import "time"

// Account links a user to an external identity provider. UserID points at
// users.id without a declared relation.
type Account struct {
	ID                int     `db:"id" json:"id"`
	UserID            int     `db:"userId" json:"userId"`
	Type              string  `db:"type" json:"type"`
	Provider          string  `db:"provider" json:"provider"`
	ProviderAccountID string  `db:"providerAccountId" json:"providerAccountId"`
	RefreshToken      *string `db:"refresh_token" json:"refresh_token"`
	AccessToken       *string `db:"access_token" json:"access_token"`
	ExpiresAt         *int64  `db:"expires_at" json:"expires_at"`
	TokenType         *string `db:"token_type" json:"token_type"`
	Scope             *string `db:"scope" json:"scope"`
	IDToken           *string `db:"id_token" json:"id_token"`
	SessionState      *string `db:"session_state" json:"session_state"`
}

// Session is a login session keyed by an opaque token.
type Session struct {
	ID           int       `db:"id" json:"id"`
	SessionToken string    `db:"sessionToken" json:"sessionToken"`
	UserID       int       `db:"userId" json:"userId"`
	Expires      time.Time `db:"expires" json:"expires"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.Expires)
}

// VerificationToken is a one-time token addressed by (identifier, token).
type VerificationToken struct {
	Identifier string    `db:"identifier" json:"identifier"`
	Token      string    `db:"token" json:"token"`
	Expires    time.Time `db:"expires" json:"expires"`
}
