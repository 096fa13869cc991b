package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialUseCase "github.com/allisson/tokenvault/internal/credential/usecase"
)

// RunRotateTokens runs one rotation pass. With an id only that credential is
// evaluated, and force refreshes it even when it is not nearing expiry.
// Without an id every credential is swept once.
func RunRotateTokens(
	ctx context.Context,
	rotationUseCase credentialUseCase.RotationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	force bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if id == "" {
		if force {
			return fmt.Errorf("--force requires --id")
		}
		return runSweep(ctx, rotationUseCase, logger, writer, format)
	}

	credentialID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid credential id: %w", err)
	}

	logger.Info("rotating credential tokens",
		slog.String("credential_id", credentialID.String()),
		slog.Bool("force", force),
	)

	result, err := rotationUseCase.Rotate(ctx, credentialID, force)
	if err != nil {
		return fmt.Errorf("failed to rotate credential: %w", err)
	}

	if format == "json" {
		output := map[string]any{
			"credential_id": result.CredentialID.String(),
			"provider":      result.Provider,
			"state":         string(result.State),
		}
		if result.ErrorKind != credentialDomain.ErrorKindNone {
			output["error_kind"] = string(result.ErrorKind)
		}
		if !result.ExpiresAt.IsZero() {
			output["expires_at"] = result.ExpiresAt.UTC().Format(time.RFC3339)
		}
		return writeJSON(writer, output)
	}

	_, _ = fmt.Fprintf(writer, "Credential %s (%s): %s\n", result.CredentialID, result.Provider, result.State)
	if result.ErrorKind != credentialDomain.ErrorKindNone {
		_, _ = fmt.Fprintf(writer, "Error kind: %s\n", result.ErrorKind)
	}
	if !result.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintf(writer, "Expires at: %s\n", result.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func runSweep(
	ctx context.Context,
	rotationUseCase credentialUseCase.RotationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("sweeping credentials for token rotation")

	report, err := rotationUseCase.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep credentials: %w", err)
	}

	logger.Info("token rotation sweep completed",
		slog.Int("evaluated", report.Evaluated),
		slog.Int("refreshed", report.Refreshed),
		slog.Int("failed", report.Failed),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"evaluated":   report.Evaluated,
			"fresh":       report.Fresh,
			"refreshed":   report.Refreshed,
			"failed":      report.Failed,
			"duration_ms": report.Duration.Milliseconds(),
		})
	}

	_, _ = fmt.Fprintf(
		writer,
		"Evaluated %d credential(s): %d fresh, %d refreshed, %d failed\n",
		report.Evaluated,
		report.Fresh,
		report.Refreshed,
		report.Failed,
	)
	return nil
}
