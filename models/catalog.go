package models

// Race is a playable faction.
type Race struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false" json:"id" toml:"id"`
	Name string `gorm:"not null" json:"name" toml:"name"`
}

// Hero belongs to exactly one race.
type Hero struct {
	ID     int64  `gorm:"primaryKey;autoIncrement:false" json:"id" toml:"id"`
	Name   string `gorm:"not null" json:"name" toml:"name"`
	RaceID int64  `gorm:"index;not null" json:"race_id" toml:"race"`
}
