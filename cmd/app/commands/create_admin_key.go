package commands

import (
	"fmt"
	"io"
	"log/slog"

	authService "github.com/allisson/tokenvault/internal/auth/service"
)

// RunCreateAdminKey generates an admin API key. The plain key is shown once;
// only its hash belongs in the server configuration.
func RunCreateAdminKey(
	keyService authService.AdminKeyService,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	plainKey, keyHash, err := keyService.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate admin key: %w", err)
	}

	logger.Info("admin key generated")

	if format == "json" {
		return writeJSON(writer, map[string]string{
			"admin_api_key":      plainKey,
			"admin_api_key_hash": keyHash,
		})
	}

	_, _ = fmt.Fprintln(writer, "# Admin API key (shown once, send it as 'Authorization: Bearer <key>')")
	_, _ = fmt.Fprintf(writer, "# %s\n", plainKey)
	_, _ = fmt.Fprintln(writer, "# Server configuration")
	_, _ = fmt.Fprintf(writer, "ADMIN_API_KEY_HASH=\"%s\"\n", keyHash)
	return nil
}
