package services

import (
	"context"

	"tournament-report-bot/models"
)

// TournamentQuery selects a tournament by id or by the chat reports are filed in.
type TournamentQuery struct {
	ID            string
	ReportsChatID int64
}

// ParticipantQuery selects a participant. Empty fields are ignored; at least one must be set.
type ParticipantQuery struct {
	ID           string
	TournamentID string
	UserID       string
	TelegramID   int64
	BracketRef   string
}

// NewMatch is what gets recorded when a draft is promoted.
type NewMatch struct {
	TournamentID      string
	FirstParticipant  string
	SecondParticipant string
	SessionRef        string
	BracketMatchID    string
}

// Persistence is the storage the report flow depends on.
type Persistence interface {
	GetTournament(ctx context.Context, q TournamentQuery) (*models.Tournament, error)
	GetParticipant(ctx context.Context, q ParticipantQuery) (*models.Participant, error)
	ListParticipants(ctx context.Context, tournamentID string, group int) ([]models.Participant, error)
	CreateMatch(ctx context.Context, m NewMatch) (string, error)
	SessionRefTaken(ctx context.Context, ref string) (bool, error)
	BulkInsertGames(ctx context.Context, matchID string, games []GameDraft, score Score) error
	RecordReport(ctx context.Context, matchID, link string) error
	RecordSync(ctx context.Context, matchID, status string) error
}

// ParticipantScore is one side of a bracket result.
type ParticipantScore struct {
	ParticipantRef string
	Score          int
	Advancing      bool
}

// OpenMatch is a bracket match still waiting for a result.
type OpenMatch struct {
	MatchID     string
	OpponentRef string
	PlayerRef   string
}

// BracketSync pushes results to the external bracket service.
type BracketSync interface {
	PushMatchResult(ctx context.Context, apiKey, tournamentID, matchID string, scores []ParticipantScore) error
	OpenMatches(ctx context.Context, apiKey, tournamentID, participantRef string) ([]OpenMatch, error)
}

// ReportTarget tells a publisher where the report belongs.
type ReportTarget struct {
	ChatID         int64
	TournamentName string
}

// ReportPublisher delivers a finished report. The returned link may be empty.
type ReportPublisher interface {
	Publish(ctx context.Context, target ReportTarget, report Report) (string, error)
}
