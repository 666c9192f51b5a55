package airquality

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertArgs_MatchesInMemoryIdentity(t *testing.T) {
	updated := time.Date(2024, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))
	rec := &Record{City: "  Lyon ", Country: "France\t", AQI: 33, LastUpdated: updated}

	args := upsertArgs(rec)
	require.Len(t, args, 13)
	assert.Equal(t, "Lyon", args[0])
	assert.Equal(t, "France", args[1])
	assert.Equal(t, 33, args[3])
	require.IsType(t, &time.Time{}, args[12])
	assert.Equal(t, time.UTC, args[12].(*time.Time).Location())

	mem := NewInMemoryRepository(clockwork.NewFakeClock())
	_, err := mem.Upsert(context.Background(), []*Record{rec})
	require.NoError(t, err)
	stored, err := mem.FindByCity(context.Background(), "Lyon")
	require.NoError(t, err)
	assert.Equal(t, stored.City, args[0])
	assert.Equal(t, stored.Country, args[1])
}

func TestUpsertArgs_ZeroLastUpdatedDefersToDatabase(t *testing.T) {
	args := upsertArgs(&Record{City: "Oslo", Country: "Norway", AQI: 12})
	assert.Nil(t, args[12])
}
