package models

// User is a community member known to the bot.
type User struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	Nickname   string `gorm:"index;not null" json:"nickname"`
	TelegramID *int64 `gorm:"uniqueIndex" json:"telegram_id,omitempty"` // nil for accounts without Telegram

	Timestamps
}

// TelegramAccount returns the linked Telegram id, or 0 when there is none.
func (u User) TelegramAccount() int64 {
	if u.TelegramID == nil {
		return 0
	}
	return *u.TelegramID
}

// Participant = user registered in a tournament
type Participant struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string `gorm:"type:uuid;index;not null" json:"tournament_id"`
	UserID       string `gorm:"type:uuid;index;not null" json:"user_id"`
	Group        int    `gorm:"column:group_number;default:0" json:"group"`

	// Participant id inside the bracket service (empty until registered there)
	BracketParticipantID string `gorm:"index" json:"bracket_participant_id,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Timestamps
}

// Handle is the display name used in reports.
func (p *Participant) Handle() string {
	return p.User.Nickname
}
