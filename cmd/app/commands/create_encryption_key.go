package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
)

// RunCreateEncryptionKey generates a random 32-byte credential encryption key
// and prints the environment variables that configure it. With a KMS provider
// the key is wrapped first and only the KMS ciphertext is printed.
//
// Rotating keys means printing a key with a higher version, configuring it as
// ENCRYPTION_KEY and keeping the previous key as ENCRYPTION_KEY_V1 until every
// credential has been re-encrypted.
func RunCreateEncryptionKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	version uint,
	kmsProvider string,
	kmsKeyURI string,
) error {
	if version == 0 {
		return fmt.Errorf("version must be at least 1")
	}

	keyConfig := cryptoService.KeyConfig{KMSProvider: kmsProvider, KMSKeyURI: kmsKeyURI}
	if keyConfig.KMSEnabled() {
		if err := keyConfig.ValidateKMS(); err != nil {
			return err
		}
	}

	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate encryption key: %w", err)
	}
	defer cryptoDomain.Zero(key)

	encoded := key
	if keyConfig.KMSEnabled() {
		keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
		if err != nil {
			return fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
			}
		}()

		ciphertext, err := keeper.Encrypt(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to encrypt key with KMS: %w", err)
		}
		encoded = ciphertext
	}

	_, _ = fmt.Fprintln(writer, "# Credential encryption key")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	if keyConfig.KMSEnabled() {
		_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "ENCRYPTION_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(encoded))
	_, _ = fmt.Fprintf(writer, "ENCRYPTION_KEY_VERSION=\"%d\"\n", version)
	if version > cryptoDomain.DefaultKeyVersion {
		_, _ = fmt.Fprintln(writer, "# Keep the version 1 key as ENCRYPTION_KEY_V1 until reencrypt-credentials has run")
	}

	logger.Info("encryption key generated",
		slog.Uint64("version", uint64(version)),
		slog.Bool("kms", keyConfig.KMSEnabled()),
	)
	return nil
}
