package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	"github.com/allisson/tokenvault/internal/database"
	apperrors "github.com/allisson/tokenvault/internal/errors"
)

// PostgreSQLCredentialRepository implements credential persistence for PostgreSQL.
type PostgreSQLCredentialRepository struct {
	db *sql.DB
}

// NewPostgreSQLCredentialRepository creates a new PostgreSQLCredentialRepository.
func NewPostgreSQLCredentialRepository(db *sql.DB) *PostgreSQLCredentialRepository {
	return &PostgreSQLCredentialRepository{db: db}
}

// Create inserts a credential.
func (p *PostgreSQLCredentialRepository) Create(ctx context.Context, credential *credentialDomain.Credential) error {
	querier := database.GetTx(ctx, p.db)

	config, err := encodeConfig(credential.APIConfig)
	if err != nil {
		return err
	}

	query := `INSERT INTO credentials (id, provider, account_name, api_config, revision, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = querier.ExecContext(
		ctx,
		query,
		credential.ID,
		credential.Provider,
		credential.AccountName,
		config,
		credential.Revision,
		credential.CreatedAt,
		credential.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create credential")
	}
	return nil
}

// Get returns the credential with id.
func (p *PostgreSQLCredentialRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*credentialDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, provider, account_name, api_config, revision, created_at, updated_at
			  FROM credentials
			  WHERE id = $1`

	var credential credentialDomain.Credential
	var config []byte
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&credential.ID,
		&credential.Provider,
		&credential.AccountName,
		&config,
		&credential.Revision,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, credentialDomain.ErrCredentialNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get credential")
	}

	if credential.APIConfig, err = decodeConfig(config); err != nil {
		return nil, err
	}
	return &credential, nil
}

// List returns credentials ordered by id.
func (p *PostgreSQLCredentialRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*credentialDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, provider, account_name, api_config, revision, created_at, updated_at
			  FROM credentials
			  ORDER BY id
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	defer rows.Close() //nolint:errcheck

	credentials := make([]*credentialDomain.Credential, 0, limit)
	for rows.Next() {
		var credential credentialDomain.Credential
		var config []byte
		if err := rows.Scan(
			&credential.ID,
			&credential.Provider,
			&credential.AccountName,
			&config,
			&credential.Revision,
			&credential.CreatedAt,
			&credential.UpdatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan credential")
		}
		if credential.APIConfig, err = decodeConfig(config); err != nil {
			return nil, err
		}
		credentials = append(credentials, &credential)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate credentials")
	}
	return credentials, nil
}

// UpdateConfig replaces the api_config blob if the stored revision still
// equals expectedRevision, and bumps the revision.
func (p *PostgreSQLCredentialRepository) UpdateConfig(
	ctx context.Context,
	id uuid.UUID,
	config credentialDomain.APIConfig,
	expectedRevision uint,
) error {
	querier := database.GetTx(ctx, p.db)

	data, err := encodeConfig(config)
	if err != nil {
		return err
	}

	query := `UPDATE credentials
			  SET api_config = $1, revision = revision + 1, updated_at = $2
			  WHERE id = $3 AND revision = $4`

	result, err := querier.ExecContext(ctx, query, data, time.Now().UTC(), id, expectedRevision)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential config")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	err = querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM credentials WHERE id = $1)`, id).
		Scan(&exists)
	if err != nil {
		return apperrors.Wrap(err, "failed to check credential")
	}
	if !exists {
		return credentialDomain.ErrCredentialNotFound
	}
	return credentialDomain.ErrConcurrentModification
}

// Delete removes the credential with id.
func (p *PostgreSQLCredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete credential")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return credentialDomain.ErrCredentialNotFound
	}
	return nil
}
