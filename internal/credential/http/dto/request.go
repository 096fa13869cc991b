// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	customValidation "github.com/allisson/tokenvault/internal/validation"
)

// LinkCredentialRequest links a third-party account with the tokens obtained
// from its authorization flow.
type LinkCredentialRequest struct {
	Provider     string         `json:"provider"`
	AccountName  string         `json:"account_name"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int64          `json:"expires_in"`
	Metadata     map[string]any `json:"metadata"`
}

// Validate checks if the link request is valid.
func (r *LinkCredentialRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Provider,
			validation.Required,
			customValidation.ProviderName,
		),
		validation.Field(&r.AccountName,
			customValidation.NoWhitespace,
			validation.Length(0, 255),
		),
		validation.Field(&r.AccessToken,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.RefreshToken,
			customValidation.NotBlank,
		),
		validation.Field(&r.ExpiresIn,
			validation.Min(int64(0)),
		),
	)
}

// ToInput maps the request to the use case input.
func (r *LinkCredentialRequest) ToInput() *credentialDomain.LinkCredentialInput {
	return &credentialDomain.LinkCredentialInput{
		Provider:     r.Provider,
		AccountName:  r.AccountName,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    time.Duration(r.ExpiresIn) * time.Second,
		Metadata:     r.Metadata,
	}
}
