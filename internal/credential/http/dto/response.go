package dto

import (
	"time"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialService "github.com/allisson/tokenvault/internal/credential/service"
	credentialUseCase "github.com/allisson/tokenvault/internal/credential/usecase"
)

// CredentialResponse is credential metadata. Tokens are never included.
type CredentialResponse struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	AccountName string    `json:"account_name"`
	Revision    uint      `json:"revision"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListCredentialsResponse is a page of credentials.
type ListCredentialsResponse struct {
	Data []CredentialResponse `json:"data"`
}

// TokenStatusResponse describes how one token is stored.
type TokenStatusResponse struct {
	Storage           string `json:"storage"`
	KeyVersion        uint   `json:"key_version,omitempty"`
	NeedsReEncryption bool   `json:"needs_reencryption"`
}

// CredentialStatusResponse is credential metadata plus token storage status.
type CredentialStatusResponse struct {
	CredentialResponse
	AccessToken       TokenStatusResponse `json:"access_token"`
	RefreshToken      TokenStatusResponse `json:"refresh_token"`
	ExpiresAt         *time.Time          `json:"expires_at"`
	CurrentKeyVersion uint                `json:"current_key_version"`
	NeedsMigration    bool                `json:"needs_migration"`
}

// RotationResponse is the outcome of a rotation request.
type RotationResponse struct {
	CredentialID string     `json:"credential_id"`
	Provider     string     `json:"provider"`
	State        string     `json:"state"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// ReEncryptResponse is the outcome of a re-encryption request.
type ReEncryptResponse struct {
	CredentialID string `json:"credential_id"`
	Changed      bool   `json:"changed"`
	KeyVersion   uint   `json:"key_version"`
}

// MapCredentialToResponse converts a domain credential to its API representation.
func MapCredentialToResponse(credential *credentialDomain.Credential) CredentialResponse {
	return CredentialResponse{
		ID:          credential.ID.String(),
		Provider:    credential.Provider,
		AccountName: credential.AccountName,
		Revision:    credential.Revision,
		CreatedAt:   credential.CreatedAt,
		UpdatedAt:   credential.UpdatedAt,
	}
}

// MapCredentialsToListResponse converts a slice of domain credentials to a list response.
func MapCredentialsToListResponse(credentials []*credentialDomain.Credential) ListCredentialsResponse {
	data := make([]CredentialResponse, 0, len(credentials))
	for _, credential := range credentials {
		data = append(data, MapCredentialToResponse(credential))
	}
	return ListCredentialsResponse{Data: data}
}

func mapTokenStatus(status credentialService.TokenStatus) TokenStatusResponse {
	return TokenStatusResponse{
		Storage:           status.Kind.String(),
		KeyVersion:        status.KeyVersion,
		NeedsReEncryption: status.NeedsReEncryption,
	}
}

// MapStatusToResponse converts a credential status to its API representation.
func MapStatusToResponse(status *credentialUseCase.CredentialStatus) CredentialStatusResponse {
	return CredentialStatusResponse{
		CredentialResponse: MapCredentialToResponse(status.Credential),
		AccessToken:        mapTokenStatus(status.Tokens.AccessToken),
		RefreshToken:       mapTokenStatus(status.Tokens.RefreshToken),
		ExpiresAt:          optionalTime(status.ExpiresAt),
		CurrentKeyVersion:  status.CurrentKeyVersion,
		NeedsMigration:     status.Tokens.NeedsMigration(),
	}
}

// MapRotationToResponse converts a rotation result to its API representation.
func MapRotationToResponse(result *credentialDomain.RotationResult) RotationResponse {
	return RotationResponse{
		CredentialID: result.CredentialID.String(),
		Provider:     result.Provider,
		State:        string(result.State),
		ErrorKind:    string(result.ErrorKind),
		ExpiresAt:    optionalTime(result.ExpiresAt),
	}
}

// MapReEncryptToResponse converts a re-encryption result to its API representation.
func MapReEncryptToResponse(result *credentialDomain.ReEncryptResult) ReEncryptResponse {
	return ReEncryptResponse{
		CredentialID: result.CredentialID.String(),
		Changed:      result.Changed,
		KeyVersion:   result.KeyVersion,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
