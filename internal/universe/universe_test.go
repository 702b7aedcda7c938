package universe

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobstocks/fundsync/internal/database"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path: "file:" + t.Name() + "?mode=memory&cache=shared",
		Name: "universe-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(Schema))
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestUpsert_NormalizesAndReactivates(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Upsert(" aapl ", "Apple Inc."))
	require.NoError(t, repo.Deactivate("AAPL"))

	active, err := repo.ListActive("")
	require.NoError(t, err)
	assert.Empty(t, active)

	// Upserting again brings it back.
	require.NoError(t, repo.Upsert("AAPL", "Apple Inc."))
	active, err = repo.ListActive("")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "AAPL", active[0].Symbol)
	assert.Equal(t, "Apple Inc.", active[0].Name)
}

func TestUpsert_EmptySymbolRejected(t *testing.T) {
	repo := setupTestRepo(t)
	assert.Error(t, repo.Upsert("  ", "nameless"))
}

func TestDeactivate_UnknownTicker(t *testing.T) {
	repo := setupTestRepo(t)
	assert.Error(t, repo.Deactivate("ZZZZ"))
}

func TestListActive_OrderedAndResumable(t *testing.T) {
	repo := setupTestRepo(t)
	for _, s := range []string{"MSFT", "AAPL", "GOOG", "NVDA"} {
		require.NoError(t, repo.Upsert(s, ""))
	}
	require.NoError(t, repo.Deactivate("GOOG"))

	all, err := repo.ListActive("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "AAPL", all[0].Symbol)
	assert.Equal(t, "MSFT", all[1].Symbol)
	assert.Equal(t, "NVDA", all[2].Symbol)

	// Resume from MSFT inclusive.
	resumed, err := repo.ListActive("msft")
	require.NoError(t, err)
	require.Len(t, resumed, 2)
	assert.Equal(t, "MSFT", resumed[0].Symbol)
	assert.Equal(t, "NVDA", resumed[1].Symbol)
}

func TestMarkSynced(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.Upsert("AAPL", ""))

	syncedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkSynced("AAPL", syncedAt))

	list, err := repo.ListActive("")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LastSyncAt)
	assert.Equal(t, syncedAt, list[0].LastSyncAt.UTC())
}

func TestSeed_SkipsExisting(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.Upsert("AAPL", "Apple Inc."))

	added, err := repo.Seed([]string{"AAPL", "MSFT", "", "NVDA"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	list, err := repo.ListActive("")
	require.NoError(t, err)
	assert.Len(t, list, 3)
	// The seeded row must not clobber the existing name.
	assert.Equal(t, "Apple Inc.", list[0].Name)
}
