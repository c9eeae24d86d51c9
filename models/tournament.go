package models

const (
	GameTypeRMG   = "rmg"
	GameTypeArena = "arena"
)

// Tournament is a bracket-backed competition whose matches are reported through the bot.
type Tournament struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string `json:"name" gorm:"not null"`
	OrganizerID string `json:"organizer_id" gorm:"type:uuid;index"`
	GameType    string `json:"game_type" gorm:"type:varchar(16);default:'rmg'"` // rmg | arena

	// Report rules
	UseBargains      bool `json:"use_bargains" gorm:"default:false"`
	UseBargainsColor bool `json:"use_bargains_color" gorm:"default:false"`
	UseForeignHeroes bool `json:"use_foreign_heroes" gorm:"default:false"`

	// Chat wiring
	RegisterChatID int64 `json:"register_chat_id" gorm:"index"`
	ReportsChatID  int64 `json:"reports_chat_id" gorm:"index"` // where /report is issued
	ResultsChatID  int64 `json:"results_chat_id"`              // where finished reports are posted

	// External bracket; empty means no sync
	BracketTournamentID string `json:"bracket_tournament_id,omitempty"`

	Organizer    Organizer     `json:"organizer,omitempty" gorm:"foreignKey:OrganizerID"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:TournamentID"`

	Timestamps
}

// HasBracket reports whether results must be pushed to the bracket service.
func (t *Tournament) HasBracket() bool {
	return t.BracketTournamentID != ""
}

// Organizer owns tournaments and the bracket-service credentials used for them.
type Organizer struct {
	ID            string `json:"id" gorm:"primaryKey;type:uuid"`
	Name          string `json:"name" gorm:"not null"`
	BracketAPIKey string `json:"-"`

	Timestamps
}
