package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SQLiteMemory(t *testing.T) {
	dbx, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer dbx.Close()

	var one int
	require.NoError(t, dbx.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect("mysql", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported db driver")
}
