package sessions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/rs/zerolog/log"
)

// DefaultKey is the storage key the dashboard has always used.
const DefaultKey = "user"

// persisted is the on-device layout: {access, refresh, user?, loginTime}.
type persisted struct {
	Access    string       `json:"access"`
	Refresh   string       `json:"refresh"`
	User      *UserProfile `json:"user,omitempty"`
	LoginTime string       `json:"loginTime"`
	ExpiresAt *int64       `json:"exp,omitempty"`
}

// Encode serialises creds in the persisted layout.
func Encode(creds Credentials) ([]byte, error) {
	p := persisted{
		Access:    creds.AccessToken,
		Refresh:   creds.RefreshToken,
		User:      creds.Profile,
		LoginTime: creds.IssuedAt.UTC().Format(time.RFC3339),
	}
	if !creds.AccessExpiresAt.IsZero() {
		exp := creds.AccessExpiresAt.Unix()
		p.ExpiresAt = &exp
	}
	return json.Marshal(p)
}

// Decode parses the persisted layout. Unparsable data or a missing access or
// refresh token is reported as ErrMalformedCredential.
func Decode(data []byte) (*Credentials, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedCredential, err)
	}
	if strings.TrimSpace(p.Access) == "" {
		return nil, fmt.Errorf("%w: missing access token", errors.ErrMalformedCredential)
	}
	if strings.TrimSpace(p.Refresh) == "" {
		return nil, fmt.Errorf("%w: missing refresh token", errors.ErrMalformedCredential)
	}

	creds := &Credentials{
		AccessToken:  p.Access,
		RefreshToken: p.Refresh,
		Profile:      p.User,
	}
	// A bad loginTime is not worth dropping the session over.
	if t, err := time.Parse(time.RFC3339, p.LoginTime); err == nil {
		creds.IssuedAt = t
	}
	if p.ExpiresAt != nil {
		creds.AccessExpiresAt = time.Unix(*p.ExpiresAt, 0)
	}
	return creds, nil
}

// DecodeOrAbsent is the tolerant read shared by every Store: unreadable data is
// logged and treated exactly like no session.
func DecodeOrAbsent(data []byte, store string) *Credentials {
	if data == nil {
		return nil
	}
	creds, err := Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("store", store).Msg("Discarding unreadable session")
		return nil
	}
	return creds
}
