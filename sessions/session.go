package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ID is an identifier the API sends either as a JSON number or a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// UserProfile is the snapshot of /users/me/ taken at login.
type UserProfile struct {
	ID          ID     `json:"id,omitempty"`
	Names       string `json:"names"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	UserClass   string `json:"user_class"`
	Shop        ID     `json:"shop,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Credentials is the single persisted session. A refresh produces a new value;
// existing values are never modified in place.
type Credentials struct {
	AccessToken     string       // Bearer credential presented on every request
	RefreshToken    string       // Used only against the refresh endpoint
	IssuedAt        time.Time    // Login time, carried across refreshes
	AccessExpiresAt time.Time    // Decoded once from the access token's exp claim; zero when unparsable
	Profile         *UserProfile // Optional, from login
}

// WithAccess returns a copy of c carrying a renewed access token. An empty
// refreshToken keeps the current one (the endpoint did not rotate it).
func (c Credentials) WithAccess(accessToken, refreshToken string, expiresAt time.Time) Credentials {
	next := c
	next.AccessToken = accessToken
	next.AccessExpiresAt = expiresAt
	if refreshToken != "" {
		next.RefreshToken = refreshToken
	}
	if c.Profile != nil {
		p := *c.Profile
		next.Profile = &p
	}
	return next
}

// Store persists at most one Credentials value.
//
// Load returns (nil, nil) when nothing is stored or the stored data cannot be
// decoded; an error means the backend itself failed. Save replaces the stored
// value in a single write so readers never see a partial record.
type Store interface {
	Save(ctx context.Context, creds Credentials) error
	Load(ctx context.Context) (*Credentials, error)
	Clear(ctx context.Context) error
}
