//go:build integration

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, Migrate(url))
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	s := NewStore(pool, slog.Default())
	require.NoError(t, s.Truncate(ctx))

	_, err = s.Import(ctx, []domain.RawRecord{
		{Fields: map[string]string{domain.ColumnCrimeType: domain.CrimeRobbery, domain.ColumnArea: "Ecclesall"}},
		{Fields: map[string]string{domain.ColumnCrimeType: domain.CrimeDrugs, domain.ColumnArea: "Ecclesall"}},
		{Fields: map[string]string{domain.ColumnCrimeType: domain.CrimeBurglary}},
	})
	require.NoError(t, err)

	var all []domain.Incident
	for {
		batch, err := s.ExtractBatch(ctx, 2)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		for _, raw := range batch {
			inc, err := domain.ParseIncident(raw)
			require.NoError(t, err)
			all = append(all, domain.Classify(inc))
		}
	}
	require.Len(t, all, 3)
	require.NoError(t, s.LoadBatch(ctx, all))

	var colour, icon string
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT colour, icon FROM incidents WHERE crime_type = $1", domain.CrimeRobbery).Scan(&colour, &icon))
	assert.Equal(t, "darkred", colour)
	assert.Equal(t, "👊", icon)

	s.Reset()
	batch, err := s.ExtractBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.NoLocation, mustParse(t, batch[2]).Area)
}

func mustParse(t *testing.T, raw domain.RawRecord) domain.Incident {
	t.Helper()
	inc, err := domain.ParseIncident(raw)
	require.NoError(t, err)
	return inc
}
