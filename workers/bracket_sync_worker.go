// workers/bracket_sync_worker.go
package workers

import (
	"context"
	"fmt"
	"time"

	"tournament-report-bot/models"
	"tournament-report-bot/services"

	"go.uber.org/zap"
)

// SyncStore is the part of the store the retry worker needs.
type SyncStore interface {
	FailedSyncs(ctx context.Context, limit int) ([]models.Match, error)
	GetTournament(ctx context.Context, q services.TournamentQuery) (*models.Tournament, error)
	GetParticipant(ctx context.Context, q services.ParticipantQuery) (*models.Participant, error)
	RecordSync(ctx context.Context, matchID, status string) error
}

// BracketSyncWorker re-pushes results whose bracket sync failed at commit time.
type BracketSyncWorker struct {
	store     SyncStore
	bracket   services.BracketSync
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewBracketSyncWorker(store SyncStore, bracket services.BracketSync, interval time.Duration, logger *zap.Logger) *BracketSyncWorker {
	return &BracketSyncWorker{
		store:     store,
		bracket:   bracket,
		interval:  interval,
		batchSize: 20,
		logger:    logger.Named("bracket-sync"),
	}
}

func (w *BracketSyncWorker) Start(ctx context.Context) {
	w.logger.Info("[SYNC] starting bracket sync retry worker", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *BracketSyncWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RetryBatch(ctx); err != nil {
				w.logger.Error("[SYNC] retry batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.logger.Info("[SYNC] bracket sync retry worker stopped")
			return
		}
	}
}

// RetryBatch pushes one batch of failed matches and returns how many succeeded.
// A match that fails again stays failed and moves to the back of the queue.
func (w *BracketSyncWorker) RetryBatch(ctx context.Context) (int, error) {
	matches, err := w.store.FailedSyncs(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	w.logger.Info("[SYNC] retrying failed bracket pushes", zap.Int("count", len(matches)))

	synced := 0
	for _, m := range matches {
		if err := w.retry(ctx, m); err != nil {
			w.logger.Warn("[SYNC] retry failed", zap.String("match_id", m.ID), zap.Error(err))
			if recErr := w.store.RecordSync(ctx, m.ID, models.SyncStatusFailed); recErr != nil {
				w.logger.Error("[SYNC] failed to record sync status", zap.String("match_id", m.ID), zap.Error(recErr))
			}
			continue
		}
		if err := w.store.RecordSync(ctx, m.ID, models.SyncStatusSynced); err != nil {
			w.logger.Error("[SYNC] failed to record sync status", zap.String("match_id", m.ID), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *BracketSyncWorker) retry(ctx context.Context, m models.Match) error {
	t, err := w.store.GetTournament(ctx, services.TournamentQuery{ID: m.TournamentID})
	if err != nil {
		return err
	}
	if t == nil || !t.HasBracket() {
		return fmt.Errorf("tournament %s has no bracket", m.TournamentID)
	}

	first, err := w.participant(ctx, m.FirstParticipant)
	if err != nil {
		return err
	}
	second, err := w.participant(ctx, m.SecondParticipant)
	if err != nil {
		return err
	}

	scores := services.BracketScores(first.BracketParticipantID, second.BracketParticipantID,
		services.Score{First: m.FirstScore, Second: m.SecondScore})
	return w.bracket.PushMatchResult(ctx, t.Organizer.BracketAPIKey, t.BracketTournamentID, m.BracketMatchID, scores)
}

func (w *BracketSyncWorker) participant(ctx context.Context, id string) (*models.Participant, error) {
	p, err := w.store.GetParticipant(ctx, services.ParticipantQuery{ID: id})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("participant %s not found", id)
	}
	return p, nil
}
