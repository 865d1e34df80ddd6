package models

import (
	"encoding/base64"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Credential is one registered passkey. The ID is the base64url credential id
// assigned by the authenticator and is unique across the whole system, not
// just per user.
type Credential struct {
	ID        string    `json:"id"`
	PublicKey []byte    `json:"publicKey"`
	Owner     string    `json:"owner"`
	SignCount uint32    `json:"signCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RawID decodes the base64url credential id back to the authenticator's raw bytes.
func (c Credential) RawID() []byte {
	raw, err := base64.RawURLEncoding.DecodeString(c.ID)
	if err != nil {
		return []byte(c.ID)
	}
	return raw
}

// User adapts a username plus its registered credentials to the webauthn.User
// interface. Usernames are the only user identity in the system; there is no
// separate user record.
type User struct {
	Name        string       `json:"name"`
	Credentials []Credential `json:"credentials"`
}

func (u User) WebAuthnID() []byte {
	return []byte(u.Name)
}

func (u User) WebAuthnName() string {
	return u.Name
}

func (u User) WebAuthnDisplayName() string {
	return u.Name
}

func (u User) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(u.Credentials))
	for _, c := range u.Credentials {
		creds = append(creds, webauthn.Credential{
			ID:        c.RawID(),
			PublicKey: c.PublicKey,
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignCount,
			},
		})
	}
	return creds
}

func (u User) WebAuthnIcon() string {
	return ""
}
