package repository

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var credentialColumns = []string{
	"id", "provider", "account_name", "api_config", "revision", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// jsonArg matches a JSON argument by value rather than by byte layout.
type jsonArg struct {
	expected map[string]any
}

func (a jsonArg) Match(v driver.Value) bool {
	data, ok := v.([]byte)
	if !ok {
		return false
	}
	var actual map[string]any
	if err := json.Unmarshal(data, &actual); err != nil {
		return false
	}
	return reflect.DeepEqual(a.expected, actual)
}
