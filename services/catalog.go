package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"tournament-report-bot/models"

	"github.com/pelletier/go-toml/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the read-only reference data shared by every session.
// It is never mutated after construction, so no locking is needed.
type Catalog struct {
	races    []models.Race
	heroes   []models.Hero
	raceByID map[int64]models.Race
	heroByID map[int64]models.Hero
}

func NewCatalog(races []models.Race, heroes []models.Hero) *Catalog {
	c := &Catalog{
		races:    append([]models.Race(nil), races...),
		heroes:   append([]models.Hero(nil), heroes...),
		raceByID: make(map[int64]models.Race, len(races)),
		heroByID: make(map[int64]models.Hero, len(heroes)),
	}
	sort.Slice(c.races, func(i, j int) bool { return c.races[i].ID < c.races[j].ID })
	sort.Slice(c.heroes, func(i, j int) bool { return c.heroes[i].ID < c.heroes[j].ID })
	for _, r := range c.races {
		c.raceByID[r.ID] = r
	}
	for _, h := range c.heroes {
		c.heroByID[h.ID] = h
	}
	return c
}

// LoadCatalog reads races and heroes once at startup.
func LoadCatalog(ctx context.Context, db *gorm.DB) (*Catalog, error) {
	var races []models.Race
	if err := db.WithContext(ctx).Order("id").Find(&races).Error; err != nil {
		return nil, fmt.Errorf("failed to load races: %w", err)
	}
	var heroes []models.Hero
	if err := db.WithContext(ctx).Order("id").Find(&heroes).Error; err != nil {
		return nil, fmt.Errorf("failed to load heroes: %w", err)
	}
	return NewCatalog(races, heroes), nil
}

type catalogFile struct {
	Races  []models.Race `toml:"races"`
	Heroes []models.Hero `toml:"heroes"`
}

// ParseCatalogFile decodes a TOML catalog:
//
//	[[races]]
//	id = 1
//	name = "Haven"
//
//	[[heroes]]
//	id = 10
//	name = "Godric"
//	race = 1
func ParseCatalogFile(r io.Reader) ([]models.Race, []models.Hero, error) {
	var f catalogFile
	if err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("invalid catalog file: %w", err)
	}
	known := make(map[int64]bool, len(f.Races))
	for _, race := range f.Races {
		known[race.ID] = true
	}
	for _, hero := range f.Heroes {
		if !known[hero.RaceID] {
			return nil, nil, fmt.Errorf("hero %d (%s) references unknown race %d", hero.ID, hero.Name, hero.RaceID)
		}
	}
	return f.Races, f.Heroes, nil
}

// SeedCatalog upserts the catalog file into the database.
func SeedCatalog(ctx context.Context, db *gorm.DB, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	races, heroes, err := ParseCatalogFile(file)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(races) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name"}),
			}).Create(&races).Error; err != nil {
				return err
			}
		}
		if len(heroes) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "race_id"}),
			}).Create(&heroes).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Catalog) Race(id int64) (models.Race, bool) {
	r, ok := c.raceByID[id]
	return r, ok
}

func (c *Catalog) Hero(id int64) (models.Hero, bool) {
	h, ok := c.heroByID[id]
	return h, ok
}

func (c *Catalog) Races() []models.Race {
	return c.races
}

func (c *Catalog) Heroes() []models.Hero {
	return c.heroes
}

// HeroesOfRace lists heroes of one race in id order.
func (c *Catalog) HeroesOfRace(raceID int64) []models.Hero {
	var out []models.Hero
	for _, h := range c.heroes {
		if h.RaceID == raceID {
			out = append(out, h)
		}
	}
	return out
}

func (c *Catalog) RaceName(id *int64) string {
	if id == nil {
		return "not selected"
	}
	if r, ok := c.raceByID[*id]; ok {
		return r.Name
	}
	return "Unknown race"
}

func (c *Catalog) HeroName(id *int64) string {
	if id == nil {
		return "not selected"
	}
	if h, ok := c.heroByID[*id]; ok {
		return h.Name
	}
	return "Unknown hero"
}

func (c *Catalog) BargainsColors() []BargainsColor {
	return []BargainsColor{BargainsRed, BargainsBlue}
}

func BargainsColorLabel(c BargainsColor) string {
	switch c {
	case BargainsRed:
		return "Red"
	case BargainsBlue:
		return "Blue"
	}
	return "Unknown"
}
