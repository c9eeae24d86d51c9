package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogTOML = `
[[races]]
id = 2
name = "Inferno"

[[races]]
id = 1
name = "Haven"

[[heroes]]
id = 10
name = "Godric"
race = 1

[[heroes]]
id = 20
name = "Grok"
race = 2

[[heroes]]
id = 11
name = "Freyda"
race = 1
`

func TestParseCatalogFile(t *testing.T) {
	races, heroes, err := ParseCatalogFile(strings.NewReader(catalogTOML))
	require.NoError(t, err)
	assert.Len(t, races, 2)
	require.Len(t, heroes, 3)
	assert.Equal(t, int64(1), heroes[0].RaceID)

	_, _, err = ParseCatalogFile(strings.NewReader("[[heroes]]\nid = 1\nname = \"Orphan\"\nrace = 7\n"))
	assert.ErrorContains(t, err, "unknown race 7")

	_, _, err = ParseCatalogFile(strings.NewReader("[[races]\nid ="))
	assert.ErrorContains(t, err, "invalid catalog file")
}

func TestSeedAndLoadCatalog(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(catalogTOML), 0o600))

	require.NoError(t, SeedCatalog(ctx, db, path))
	// seeding again updates in place
	renamed := strings.Replace(catalogTOML, `"Grok"`, `"Grok the Bold"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(renamed), 0o600))
	require.NoError(t, SeedCatalog(ctx, db, path))

	c, err := LoadCatalog(ctx, db)
	require.NoError(t, err)
	require.Len(t, c.Races(), 2)
	require.Len(t, c.Heroes(), 3)
	assert.Equal(t, "Haven", c.Races()[0].Name)
	assert.Equal(t, "Grok the Bold", c.HeroName(ptr(int64(20))))

	assert.Error(t, SeedCatalog(ctx, db, filepath.Join(t.TempDir(), "missing.toml")))
}

func TestCatalogLookups(t *testing.T) {
	c := testCatalog()

	assert.Equal(t, []int64{raceHaven, raceInferno}, []int64{c.Races()[0].ID, c.Races()[1].ID})

	haven := c.HeroesOfRace(raceHaven)
	require.Len(t, haven, 2)
	assert.Equal(t, heroGodric, haven[0].ID)
	assert.Equal(t, heroFreyda, haven[1].ID)
	assert.Empty(t, c.HeroesOfRace(99))

	assert.Equal(t, "Inferno", c.RaceName(ptr(raceInferno)))
	assert.Equal(t, "not selected", c.RaceName(nil))
	assert.Equal(t, "Unknown race", c.RaceName(ptr(int64(99))))
	assert.Equal(t, "Unknown hero", c.HeroName(ptr(int64(99))))
	assert.Equal(t, "not selected", c.HeroName(nil))

	assert.Equal(t, "Red", BargainsColorLabel(BargainsRed))
	assert.Equal(t, "Unknown", BargainsColorLabel("green"))
}
