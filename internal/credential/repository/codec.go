// Package repository persists credentials in PostgreSQL and MySQL. The
// api_config blob is stored as JSON and every update is guarded by the
// credential revision.
package repository

import (
	"encoding/json"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	apperrors "github.com/allisson/tokenvault/internal/errors"
)

func encodeConfig(config credentialDomain.APIConfig) ([]byte, error) {
	if config == nil {
		config = credentialDomain.APIConfig{}
	}
	data, err := json.Marshal(config)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode api config")
	}
	return data, nil
}

func decodeConfig(data []byte) (credentialDomain.APIConfig, error) {
	config := credentialDomain.APIConfig{}
	if len(data) == 0 {
		return config, nil
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode api config")
	}
	return config, nil
}
