package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/openhearth/passgate/internal/models"
)

// RegistrationResult is what the verifier extracts from a valid attestation:
// the material the store needs to persist the new credential.
type RegistrationResult struct {
	CredentialID string
	PublicKey    []byte
	SignCount    uint32
}

// AuthenticationResult carries the counter the authenticator reported during
// the assertion. The ceremony engine applies the clone-detection rule.
type AuthenticationResult struct {
	NewSignCount uint32
}

// Verifier performs the cryptographic half of a ceremony: checking an
// authenticator's proof against the challenge it was supposed to sign over.
// The ceremony engine treats it as an external collaborator so tests can
// substitute a fake.
type Verifier interface {
	VerifyRegistration(ctx context.Context, proof []byte, challenge string, user models.User) (*RegistrationResult, error)
	VerifyAuthentication(ctx context.Context, proof []byte, challenge string, credential models.Credential) (*AuthenticationResult, error)
}

// WebAuthnVerifier verifies proofs with go-webauthn, reconstructing the
// library's session data from the stored challenge.
type WebAuthnVerifier struct {
	webauthn *webauthn.WebAuthn
}

func NewWebAuthnVerifier(webauthn *webauthn.WebAuthn) *WebAuthnVerifier {
	return &WebAuthnVerifier{
		webauthn: webauthn,
	}
}

func (v *WebAuthnVerifier) VerifyRegistration(ctx context.Context, proof []byte, challenge string, user models.User) (*RegistrationResult, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(proof))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotVerified, err)
	}

	session := webauthn.SessionData{
		Challenge:        challenge,
		UserID:           user.WebAuthnID(),
		UserVerification: protocol.VerificationPreferred,
	}

	credential, err := v.webauthn.CreateCredential(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotVerified, err)
	}

	return &RegistrationResult{
		CredentialID: base64.RawURLEncoding.EncodeToString(credential.ID),
		PublicKey:    credential.PublicKey,
		SignCount:    credential.Authenticator.SignCount,
	}, nil
}

func (v *WebAuthnVerifier) VerifyAuthentication(ctx context.Context, proof []byte, challenge string, credential models.Credential) (*AuthenticationResult, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(proof))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotVerified, err)
	}

	// The library validates the assertion against the user's credential set,
	// so present a user holding exactly the stored credential.
	user := models.User{
		Name:        credential.Owner,
		Credentials: []models.Credential{credential},
	}

	session := webauthn.SessionData{
		Challenge:            challenge,
		UserID:               user.WebAuthnID(),
		AllowedCredentialIDs: [][]byte{credential.RawID()},
		UserVerification:     protocol.VerificationPreferred,
	}

	validated, err := v.webauthn.ValidateLogin(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotVerified, err)
	}

	return &AuthenticationResult{
		NewSignCount: validated.Authenticator.SignCount,
	}, nil
}
