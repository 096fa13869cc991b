package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	"github.com/allisson/tokenvault/internal/errors"
)

// ErrInvalidKMSConfig is returned when the KMS provider and key URI disagree or
// only one of them is set.
var ErrInvalidKMSConfig = errors.Wrap(errors.ErrInvalidInput, "invalid KMS configuration")

// kmsSchemes maps KMS_PROVIDER values to the URI scheme gocloud expects.
var kmsSchemes = map[string]string{
	"localsecrets":  "base64key://",
	"gcpkms":        "gcpkms://",
	"awskms":        "awskms://",
	"azurekeyvault": "azurekeyvault://",
	"hashivault":    "hashivault://",
}

// KeyConfig is the key-related subset of the application configuration.
type KeyConfig struct {
	// EncryptionKey is the base64 current key (ENCRYPTION_KEY).
	EncryptionKey string
	// EncryptionKeyVersion is the version EncryptionKey is stamped with. It
	// must be at least 1.
	EncryptionKeyVersion int
	// EncryptionKeyV1 is the base64 version 1 key (ENCRYPTION_KEY_V1).
	EncryptionKeyV1 string
	// KMSProvider names the KMS used to wrap the configured keys, if any.
	KMSProvider string
	// KMSKeyURI is the gocloud URI of the wrapping key.
	KMSKeyURI string
}

// KMSEnabled reports whether configured keys are KMS ciphertexts.
func (c KeyConfig) KMSEnabled() bool {
	return c.KMSProvider != "" || c.KMSKeyURI != ""
}

// ValidateKMS checks that provider and URI are both set and agree on the scheme.
func (c KeyConfig) ValidateKMS() error {
	if c.KMSProvider == "" || c.KMSKeyURI == "" {
		return fmt.Errorf("%w: KMS_PROVIDER and KMS_KEY_URI must be set together", ErrInvalidKMSConfig)
	}
	scheme, ok := kmsSchemes[c.KMSProvider]
	if !ok {
		return fmt.Errorf("%w: unknown KMS provider %q", ErrInvalidKMSConfig, c.KMSProvider)
	}
	if !strings.HasPrefix(c.KMSKeyURI, scheme) {
		return fmt.Errorf("%w: %s key URI must start with %s", ErrInvalidKMSConfig, c.KMSProvider, scheme)
	}
	return nil
}

// LoadKeyRegistry builds the key registry from configuration.
//
// EncryptionKeyVersion must be at least 1; anything lower fails with
// ErrInvalidKeyVersion rather than being rewritten, so a retained key is never
// shadowed by a mistyped version.
//
// ENCRYPTION_KEY is the current key at EncryptionKeyVersion. ENCRYPTION_KEY_V1
// is retained as version 1, or becomes the current key when ENCRYPTION_KEY is
// unset. When KMS is configured every value is first unwrapped by the keeper.
func LoadKeyRegistry(
	ctx context.Context,
	cfg KeyConfig,
	kmsService KMSService,
	logger *slog.Logger,
) (*cryptoDomain.KeyRegistry, error) {
	if cfg.EncryptionKey == "" && cfg.EncryptionKeyV1 == "" {
		return nil, cryptoDomain.ErrMissingEncryptionKey
	}
	if cfg.EncryptionKeyVersion < 1 {
		return nil, fmt.Errorf(
			"%w: ENCRYPTION_KEY_VERSION must be at least 1, got %d",
			cryptoDomain.ErrInvalidKeyVersion,
			cfg.EncryptionKeyVersion,
		)
	}

	var keeper KMSKeeper
	if cfg.KMSEnabled() {
		if err := cfg.ValidateKMS(); err != nil {
			return nil, err
		}
		k, err := kmsService.OpenKeeper(ctx, cfg.KMSKeyURI)
		if err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := k.Close(); closeErr != nil && logger != nil {
				logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
			}
		}()
		keeper = k
	}

	decode := func(name, value string) ([]byte, error) {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrInvalidKeyEncoding, name)
		}
		if keeper == nil {
			return raw, nil
		}
		key, err := keeper.Decrypt(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to unwrap %s with KMS: %w", name, err)
		}
		return key, nil
	}

	if cfg.EncryptionKey == "" {
		key, err := decode("ENCRYPTION_KEY_V1", cfg.EncryptionKeyV1)
		if err != nil {
			return nil, err
		}
		defer cryptoDomain.Zero(key)
		return cryptoDomain.NewKeyRegistry(
			cryptoDomain.KeyMaterial{Version: cryptoDomain.DefaultKeyVersion, Key: key},
		)
	}

	version := uint(cfg.EncryptionKeyVersion)

	current, err := decode("ENCRYPTION_KEY", cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(current)

	var retained []cryptoDomain.KeyMaterial
	if cfg.EncryptionKeyV1 != "" {
		if version == cryptoDomain.DefaultKeyVersion {
			if logger != nil {
				logger.Warn("ENCRYPTION_KEY_V1 ignored because ENCRYPTION_KEY is version 1")
			}
		} else {
			v1, err := decode("ENCRYPTION_KEY_V1", cfg.EncryptionKeyV1)
			if err != nil {
				return nil, err
			}
			defer cryptoDomain.Zero(v1)
			retained = append(retained, cryptoDomain.KeyMaterial{Version: cryptoDomain.DefaultKeyVersion, Key: v1})
		}
	}

	registry, err := cryptoDomain.NewKeyRegistry(
		cryptoDomain.KeyMaterial{Version: version, Key: current},
		retained...,
	)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("encryption keys loaded",
			slog.Uint64("current_version", uint64(registry.CurrentVersion())),
			slog.Int("key_count", len(registry.Versions())),
			slog.Bool("kms", keeper != nil),
		)
	}
	return registry, nil
}
