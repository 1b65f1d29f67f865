package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/domain"
)

var (
	_ domain.BookingRepository   = (*DB)(nil)
	_ domain.JobRepository       = (*DB)(nil)
	_ domain.CustomerRepository  = (*DB)(nil)
	_ domain.InventoryRepository = (*DB)(nil)
	_ domain.InvoiceRepository   = (*DB)(nil)
	_ domain.TechnicianLookup    = (*DB)(nil)
	_ domain.InventoryMutator    = (*DB)(nil)
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_CreatesFile(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "nested", "workshop.db")

	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
	assert.FileExists(t, path)
}

func TestNewDB_TablesAreIdempotent(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, createTables(db.DB))
}
