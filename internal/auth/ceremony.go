package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openhearth/passgate/internal/models"
	"github.com/openhearth/passgate/internal/storage"
)

// RelyingParty identifies this service to authenticators.
type RelyingParty struct {
	Name   string `json:"name" yaml:"name"`
	ID     string `json:"id" yaml:"id"`
	Origin string `json:"origin" yaml:"origin"`
}

// CredentialDescriptor names one credential in an exclusion or allow list,
// in the WebAuthn JSON shape the client hands to its authenticator.
type CredentialDescriptor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type credentialParam struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

type optionsRP struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type optionsUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// RegistrationOptions are the ceremony parameters returned by
// BeginRegistration: who the relying party is, who is registering, the
// challenge to sign over, and which credentials the authenticator must not
// re-register.
type RegistrationOptions struct {
	Challenge          string                 `json:"challenge"`
	RP                 optionsRP              `json:"rp"`
	User               optionsUser            `json:"user"`
	PubKeyCredParams   []credentialParam      `json:"pubKeyCredParams"`
	Timeout            int                    `json:"timeout"`
	ExcludeCredentials []CredentialDescriptor `json:"excludeCredentials"`
}

// AuthenticationOptions are the ceremony parameters returned by
// BeginAuthentication.
type AuthenticationOptions struct {
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	Timeout          int                    `json:"timeout"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
}

const ceremonyTimeoutMS = 60000

// CeremonyEngine orchestrates the two two-step ceremonies. It owns no state
// between steps; everything in flight lives in the challenge slot and the
// credential store, so concurrent requests are safe (modulo the documented
// last-write-wins race on the per-user challenge).
type CeremonyEngine struct {
	rp          RelyingParty
	credentials storage.CredentialStorage
	challenges  *ChallengeManager
	sessions    *SessionIssuer
	verifier    Verifier
}

func NewCeremonyEngine(rp RelyingParty, credentials storage.CredentialStorage, challenges *ChallengeManager, sessions *SessionIssuer, verifier Verifier) *CeremonyEngine {
	return &CeremonyEngine{
		rp:          rp,
		credentials: credentials,
		challenges:  challenges,
		sessions:    sessions,
		verifier:    verifier,
	}
}

// BeginRegistration issues a challenge for the user and returns registration
// options excluding the credentials they already hold.
func (e *CeremonyEngine) BeginRegistration(ctx context.Context, username string) (*RegistrationOptions, error) {
	creds, err := e.credentials.ListCredentials(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	challenge, err := e.challenges.Issue(ctx, username)
	if err != nil {
		return nil, err
	}

	return &RegistrationOptions{
		Challenge: challenge,
		RP: optionsRP{
			Name: e.rp.Name,
			ID:   e.rp.ID,
		},
		User: optionsUser{
			ID:          base64.RawURLEncoding.EncodeToString([]byte(username)),
			Name:        username,
			DisplayName: username,
		},
		PubKeyCredParams: []credentialParam{
			{Type: "public-key", Alg: -7},
			{Type: "public-key", Alg: -257},
		},
		Timeout:            ceremonyTimeoutMS,
		ExcludeCredentials: descriptors(creds),
	}, nil
}

// FinishRegistration consumes the pending challenge, verifies the attestation
// proof, and persists the new credential. No session is created here.
func (e *CeremonyEngine) FinishRegistration(ctx context.Context, username string, proof []byte) error {
	challenge, err := e.challenges.Consume(ctx, username)
	if err != nil {
		return err
	}

	creds, err := e.credentials.ListCredentials(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	user := models.User{
		Name:        username,
		Credentials: creds,
	}

	result, err := e.verifier.VerifyRegistration(ctx, proof, challenge, user)
	if err != nil {
		return err
	}

	now := time.Now()
	credential := models.Credential{
		ID:        result.CredentialID,
		PublicKey: result.PublicKey,
		Owner:     username,
		SignCount: result.SignCount,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.credentials.PutCredential(ctx, credential); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// BeginAuthentication issues a challenge and returns authentication options
// listing the user's registered credentials. An empty allow list is legal;
// the ceremony simply cannot complete for a user with no credentials.
func (e *CeremonyEngine) BeginAuthentication(ctx context.Context, username string) (*AuthenticationOptions, error) {
	creds, err := e.credentials.ListCredentials(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	challenge, err := e.challenges.Issue(ctx, username)
	if err != nil {
		return nil, err
	}

	return &AuthenticationOptions{
		Challenge:        challenge,
		RPID:             e.rp.ID,
		Timeout:          ceremonyTimeoutMS,
		AllowCredentials: descriptors(creds),
	}, nil
}

// FinishAuthentication consumes the pending challenge, verifies the assertion
// proof against the stored credential, applies the clone-detection counter
// rule, persists the advanced counter, and issues a session.
func (e *CeremonyEngine) FinishAuthentication(ctx context.Context, username string, proof []byte) (*models.Session, error) {
	challenge, err := e.challenges.Consume(ctx, username)
	if err != nil {
		return nil, err
	}

	claimedID, err := claimedCredentialID(proof)
	if err != nil {
		return nil, err
	}

	creds, err := e.credentials.ListCredentials(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	var credential *models.Credential
	for i := range creds {
		if creds[i].ID == claimedID {
			credential = &creds[i]
			break
		}
	}
	if credential == nil {
		return nil, ErrUnknownCredential
	}

	result, err := e.verifier.VerifyAuthentication(ctx, proof, challenge, *credential)
	if err != nil {
		return nil, err
	}

	// A counter that repeats or goes backwards means the private key has been
	// cloned. A stored counter of zero means the authenticator does not
	// implement counters, so the rule cannot apply.
	if credential.SignCount > 0 && result.NewSignCount <= credential.SignCount {
		return nil, fmt.Errorf("%w: sign counter did not advance", ErrNotVerified)
	}

	credential.SignCount = result.NewSignCount
	credential.UpdatedAt = time.Now()

	if err := e.credentials.PutCredential(ctx, *credential); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	return e.sessions.Issue(ctx, username)
}

// claimedCredentialID pulls the credential id out of an assertion proof so
// the stored credential can be looked up before verification.
func claimedCredentialID(proof []byte) (string, error) {
	var claimed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(proof, &claimed); err != nil || claimed.ID == "" {
		return "", ErrUnknownCredential
	}
	return claimed.ID, nil
}

func descriptors(creds []models.Credential) []CredentialDescriptor {
	out := make([]CredentialDescriptor, 0, len(creds))
	for _, cred := range creds {
		out = append(out, CredentialDescriptor{
			Type: "public-key",
			ID:   cred.ID,
		})
	}
	return out
}
