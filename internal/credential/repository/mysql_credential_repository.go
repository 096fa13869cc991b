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

// MySQLCredentialRepository implements credential persistence for MySQL.
// IDs are stored as BINARY(16).
type MySQLCredentialRepository struct {
	db *sql.DB
}

// NewMySQLCredentialRepository creates a new MySQLCredentialRepository.
func NewMySQLCredentialRepository(db *sql.DB) *MySQLCredentialRepository {
	return &MySQLCredentialRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLCredential(row rowScanner) (*credentialDomain.Credential, error) {
	var credential credentialDomain.Credential
	var id, config []byte

	if err := row.Scan(
		&id,
		&credential.Provider,
		&credential.AccountName,
		&config,
		&credential.Revision,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := credential.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal credential id")
	}

	var err error
	if credential.APIConfig, err = decodeConfig(config); err != nil {
		return nil, err
	}
	return &credential, nil
}

// Create inserts a credential.
func (m *MySQLCredentialRepository) Create(ctx context.Context, credential *credentialDomain.Credential) error {
	querier := database.GetTx(ctx, m.db)

	id, err := credential.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	config, err := encodeConfig(credential.APIConfig)
	if err != nil {
		return err
	}

	query := `INSERT INTO credentials (id, provider, account_name, api_config, revision, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLCredentialRepository) Get(ctx context.Context, id uuid.UUID) (*credentialDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal credential id")
	}

	query := `SELECT id, provider, account_name, api_config, revision, created_at, updated_at
			  FROM credentials
			  WHERE id = ?`

	credential, err := scanMySQLCredential(querier.QueryRowContext(ctx, query, binaryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, credentialDomain.ErrCredentialNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get credential")
	}
	return credential, nil
}

// List returns credentials ordered by id.
func (m *MySQLCredentialRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*credentialDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, provider, account_name, api_config, revision, created_at, updated_at
			  FROM credentials
			  ORDER BY id
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	defer rows.Close() //nolint:errcheck

	credentials := make([]*credentialDomain.Credential, 0, limit)
	for rows.Next() {
		credential, err := scanMySQLCredential(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan credential")
		}
		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate credentials")
	}
	return credentials, nil
}

// UpdateConfig replaces the api_config blob if the stored revision still
// equals expectedRevision, and bumps the revision.
func (m *MySQLCredentialRepository) UpdateConfig(
	ctx context.Context,
	id uuid.UUID,
	config credentialDomain.APIConfig,
	expectedRevision uint,
) error {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	data, err := encodeConfig(config)
	if err != nil {
		return err
	}

	query := `UPDATE credentials
			  SET api_config = ?, revision = revision + 1, updated_at = ?
			  WHERE id = ? AND revision = ?`

	result, err := querier.ExecContext(ctx, query, data, time.Now().UTC(), binaryID, expectedRevision)
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
	err = querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM credentials WHERE id = ?)`, binaryID).
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
func (m *MySQLCredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, binaryID)
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
