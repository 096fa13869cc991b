package domain

import (
	"time"

	"github.com/google/uuid"
)

// LinkCredentialInput carries the tokens handed back when an account is linked.
type LinkCredentialInput struct {
	Provider     string
	AccountName  string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	// Metadata is provider data stored next to the tokens (scopes, account ids).
	Metadata map[string]any
}

// ReEncryptResult is the outcome of migrating one credential to the current key.
type ReEncryptResult struct {
	CredentialID uuid.UUID
	// Changed is false when the stored blob was already up to date.
	Changed    bool
	KeyVersion uint
}

// ReEncryptReport summarizes a batch migration.
type ReEncryptReport struct {
	Scanned   int
	Migrated  int
	Unchanged int
	Failed    int
}
