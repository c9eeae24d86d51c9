package models

import "time"

const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
	SyncStatusSkipped = "skipped"
)

const (
	OutcomeUndecided = "undecided"
	OutcomeFirstWon  = "first_won"
	OutcomeSecondWon = "second_won"
)

// Match records one reported series between two participants
type Match struct {
	ID                string `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID      string `gorm:"type:uuid;index;not null" json:"tournament_id"`
	FirstParticipant  string `gorm:"type:uuid;index;not null" json:"first_participant"`
	SecondParticipant string `gorm:"type:uuid;index;not null" json:"second_participant"`
	SessionRef        string `gorm:"uniqueIndex;not null" json:"session_ref"` // UI the report was filed through

	BracketMatchID string `json:"bracket_match_id,omitempty"`

	// Filled on commit
	FirstScore  int    `json:"first_score" gorm:"default:0"`
	SecondScore int    `json:"second_score" gorm:"default:0"`
	ReportLink  string `json:"report_link,omitempty"`

	SyncStatus string     `json:"sync_status" gorm:"type:varchar(16);default:'pending';index"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`

	Games []Game `json:"games,omitempty" gorm:"foreignKey:MatchID"`

	Timestamps
}

// Game is a single played game of a match.
type Game struct {
	ID               string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID          string `gorm:"type:uuid;uniqueIndex:idx_game_match_number;not null" json:"match_id"`
	Number           int    `gorm:"uniqueIndex:idx_game_match_number;not null" json:"number"`
	FirstPlayerRace  int64  `json:"first_player_race"`
	FirstPlayerHero  int64  `json:"first_player_hero"`
	SecondPlayerRace int64  `json:"second_player_race"`
	SecondPlayerHero int64  `json:"second_player_hero"`

	BargainsColor  *string `gorm:"type:varchar(8)" json:"bargains_color,omitempty"` // red | blue
	BargainsAmount int64   `gorm:"default:0" json:"bargains_amount"`

	Outcome string `gorm:"type:varchar(16);not null" json:"outcome"`
	Victory string `gorm:"type:varchar(16)" json:"victory,omitempty"` // final_battle | neutrals | surrender

	Timestamps
}
