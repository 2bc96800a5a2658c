package versionedstore

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestSchemaCheckConvertsUndefinedTable(t *testing.T) {
	raw := &pgconn.PgError{Code: "42P01", Message: "relation \"global\" does not exist"}

	got := schemaCheck(raw)
	require.ErrorIs(t, got, ErrSchemaError)
}

func TestSchemaCheckPassesThroughOtherErrors(t *testing.T) {
	other := errors.New("connection reset")

	got := schemaCheck(other)
	require.Same(t, other, got)
	require.False(t, errors.Is(got, ErrSchemaError))
}

func TestSchemaCheckNilIsNil(t *testing.T) {
	require.NoError(t, schemaCheck(nil))
}
