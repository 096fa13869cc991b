package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	credentialUseCase "github.com/allisson/tokenvault/internal/credential/usecase"
)

// RunReEncryptCredentials migrates every stored credential to the current
// encryption key. Plaintext-only tokens are sealed and envelopes under older
// keys are re-sealed. With dropPlaintext the legacy plaintext fields are
// removed once an envelope exists.
//
// Run it after rotating ENCRYPTION_KEY and before retiring ENCRYPTION_KEY_V1.
func RunReEncryptCredentials(
	ctx context.Context,
	credentialUseCase credentialUseCase.CredentialUseCase,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
	dropPlaintext bool,
	format string,
) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be a positive number, got: %d", batchSize)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("re-encrypting credentials",
		slog.Int("batch_size", batchSize),
		slog.Bool("drop_plaintext", dropPlaintext),
	)

	report, err := credentialUseCase.ReEncryptBatch(ctx, batchSize, dropPlaintext)
	if err != nil {
		return fmt.Errorf("failed to re-encrypt credentials: %w", err)
	}

	logger.Info("re-encryption completed",
		slog.Int("scanned", report.Scanned),
		slog.Int("migrated", report.Migrated),
		slog.Int("failed", report.Failed),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"scanned":        report.Scanned,
			"migrated":       report.Migrated,
			"unchanged":      report.Unchanged,
			"failed":         report.Failed,
			"drop_plaintext": dropPlaintext,
		})
	}

	_, _ = fmt.Fprintf(
		writer,
		"Scanned %d credential(s): %d migrated, %d unchanged, %d failed\n",
		report.Scanned,
		report.Migrated,
		report.Unchanged,
		report.Failed,
	)
	if report.Failed > 0 {
		_, _ = fmt.Fprintln(writer, "Some credentials could not be migrated; check the logs before retiring old keys")
	}
	return nil
}
