package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tournament-report-bot/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TournamentStore is the GORM-backed Persistence.
type TournamentStore struct {
	DB *gorm.DB
}

func NewTournamentStore(db *gorm.DB) *TournamentStore {
	return &TournamentStore{DB: db}
}

// GetTournament returns nil, nil when nothing matches.
func (s *TournamentStore) GetTournament(ctx context.Context, q TournamentQuery) (*models.Tournament, error) {
	if q.ID == "" && q.ReportsChatID == 0 {
		return nil, fmt.Errorf("%w: empty tournament query", ErrInvalidValue)
	}

	query := s.DB.WithContext(ctx).Preload("Organizer")
	if q.ID != "" {
		query = query.Where("id = ?", q.ID)
	}
	if q.ReportsChatID != 0 {
		query = query.Where("reports_chat_id = ?", q.ReportsChatID)
	}

	var t models.Tournament
	if err := query.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceErr("get tournament", err)
	}
	return &t, nil
}

// GetParticipant returns nil, nil when nothing matches.
func (s *TournamentStore) GetParticipant(ctx context.Context, q ParticipantQuery) (*models.Participant, error) {
	if q.ID == "" && q.UserID == "" && q.TelegramID == 0 && q.BracketRef == "" {
		return nil, fmt.Errorf("%w: empty participant query", ErrInvalidValue)
	}

	query := s.DB.WithContext(ctx).Model(&models.Participant{}).Preload("User")
	if q.ID != "" {
		query = query.Where("participants.id = ?", q.ID)
	}
	if q.TournamentID != "" {
		query = query.Where("participants.tournament_id = ?", q.TournamentID)
	}
	if q.UserID != "" {
		query = query.Where("participants.user_id = ?", q.UserID)
	}
	if q.BracketRef != "" {
		query = query.Where("participants.bracket_participant_id = ?", q.BracketRef)
	}
	if q.TelegramID != 0 {
		query = query.
			Select("participants.*").
			Joins("JOIN users ON users.id = participants.user_id AND users.deleted_at IS NULL").
			Where("users.telegram_id = ?", q.TelegramID)
	}

	var p models.Participant
	if err := query.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceErr("get participant", err)
	}
	return &p, nil
}

func (s *TournamentStore) ListParticipants(ctx context.Context, tournamentID string, group int) ([]models.Participant, error) {
	var out []models.Participant
	err := s.DB.WithContext(ctx).
		Preload("User").
		Where("tournament_id = ? AND group_number = ?", tournamentID, group).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, persistenceErr("list participants", err)
	}
	return out, nil
}

func (s *TournamentStore) CreateMatch(ctx context.Context, m NewMatch) (string, error) {
	match := models.Match{
		ID:                uuid.NewString(),
		TournamentID:      m.TournamentID,
		FirstParticipant:  m.FirstParticipant,
		SecondParticipant: m.SecondParticipant,
		SessionRef:        m.SessionRef,
		BracketMatchID:    m.BracketMatchID,
		SyncStatus:        models.SyncStatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&match).Error; err != nil {
		// needs gorm.Config.TranslateError
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", fmt.Errorf("%w: %s", ErrSessionExists, m.SessionRef)
		}
		return "", persistenceErr("create match", err)
	}
	return match.ID, nil
}

// SessionRefTaken reports whether a match was already filed under ref.
func (s *TournamentStore) SessionRefTaken(ctx context.Context, ref string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Match{}).Where("session_ref = ?", ref).Count(&n).Error
	if err != nil {
		return false, persistenceErr("check session ref", err)
	}
	return n > 0, nil
}

// BulkInsertGames stores every game and the final score in one transaction.
func (s *TournamentStore) BulkInsertGames(ctx context.Context, matchID string, games []GameDraft, score Score) error {
	rows := make([]models.Game, 0, len(games))
	for _, g := range games {
		row := models.Game{
			ID:               uuid.NewString(),
			MatchID:          matchID,
			Number:           g.Number,
			FirstPlayerRace:  deref(g.FirstRace),
			FirstPlayerHero:  deref(g.FirstHero),
			SecondPlayerRace: deref(g.SecondRace),
			SecondPlayerHero: deref(g.SecondHero),
			BargainsAmount:   g.BargainsAmount,
			Outcome:          string(g.Outcome),
			Victory:          string(g.Victory),
		}
		if g.BargainsColor != nil {
			c := string(*g.BargainsColor)
			row.BargainsColor = &c
		}
		rows = append(rows, row)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Match{}).
			Where("id = ?", matchID).
			Updates(map[string]interface{}{
				"first_score":  score.First,
				"second_score": score.Second,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("match %s does not exist", matchID)
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return persistenceErr("insert games", err)
	}
	return nil
}

func (s *TournamentStore) RecordReport(ctx context.Context, matchID, link string) error {
	err := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("id = ?", matchID).
		Update("report_link", link).Error
	if err != nil {
		return persistenceErr("record report link", err)
	}
	return nil
}

func (s *TournamentStore) RecordSync(ctx context.Context, matchID, status string) error {
	updates := map[string]interface{}{"sync_status": status}
	if status == models.SyncStatusSynced {
		updates["synced_at"] = time.Now()
	}
	err := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("id = ?", matchID).
		Updates(updates).Error
	if err != nil {
		return persistenceErr("record sync status", err)
	}
	return nil
}

// FailedSyncs lists matches whose bracket push failed, oldest first.
func (s *TournamentStore) FailedSyncs(ctx context.Context, limit int) ([]models.Match, error) {
	var out []models.Match
	err := s.DB.WithContext(ctx).
		Where("sync_status = ? AND bracket_match_id <> ''", models.SyncStatusFailed).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, persistenceErr("list failed syncs", err)
	}
	return out, nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
