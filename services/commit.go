package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tournament-report-bot/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Committer turns a finished game sequence into stored results exactly once.
type Committer struct {
	sessions   *SessionStore
	store      Persistence
	bracket    BracketSync
	publishers []ReportPublisher
	now        func() time.Time
	logger     *zap.Logger
}

// NewCommitter builds the commit pipeline. bracket may be nil when no bracket service is configured.
func NewCommitter(sessions *SessionStore, store Persistence, bracket BracketSync, publishers []ReportPublisher, logger *zap.Logger) *Committer {
	return &Committer{
		sessions:   sessions,
		store:      store,
		bracket:    bracket,
		publishers: publishers,
		now:        time.Now,
		logger:     logger.Named("commit"),
	}
}

type followUp struct {
	matchID             string
	tournamentID        string
	bracketTournamentID string
	bracketMatchID      string
	resultsChatID       int64
}

// Submit stores the games of the session and publishes the report.
// Storing happens under the session lock; publication and bracket sync run after it is released.
// A repeated Submit returns the stored report without side effects.
// Failures after the games are stored come back as *CommitWarning together with the report.
func (c *Committer) Submit(ctx context.Context, key string) (*Report, error) {
	var (
		report  *Report
		already bool
		next    followUp
	)

	err := c.sessions.With(key, func(sess *Session) error {
		seq := sess.Games
		if seq == nil {
			return ErrWrongPhase
		}
		if seq.Committed {
			report = seq.Report.clone()
			already = true
			return nil
		}
		if n := seq.FirstIncomplete(); n != 0 {
			return fmt.Errorf("%w: game %d", ErrIncompleteGame, n)
		}

		score := scoreOf(seq.Games)
		games := make([]GameDraft, len(seq.Games))
		for i, g := range seq.Games {
			games[i] = g.clone()
		}
		if err := c.store.BulkInsertGames(ctx, seq.MatchID, games, score); err != nil {
			if !errors.Is(err, ErrPersistence) {
				err = persistenceErr("bulk insert games", err)
			}
			return err
		}

		seq.Committed = true
		seq.Report = seq.buildReport(score, c.now())
		report = seq.Report.clone()
		next = followUp{
			matchID:             seq.MatchID,
			tournamentID:        seq.TournamentID,
			bracketTournamentID: seq.BracketTournamentID,
			bracketMatchID:      seq.BracketMatchID,
			resultsChatID:       seq.ResultsChatID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if already {
		return report, nil
	}

	c.logger.Info("[REPORT] match committed",
		zap.String("match_id", report.MatchID),
		zap.String("first", report.First.Handle),
		zap.String("second", report.Second.Handle),
		zap.Int("first_score", report.Score.First),
		zap.Int("second_score", report.Score.Second),
	)

	errs := multierr.Append(c.publish(ctx, next, report), c.syncBracket(ctx, next, report))
	if errs != nil {
		c.logger.Warn("[REPORT] follow-up failed", zap.String("match_id", report.MatchID), zap.Error(errs))
		return report, &CommitWarning{Err: errs}
	}
	return report, nil
}

func (c *Committer) publish(ctx context.Context, f followUp, report *Report) error {
	var (
		errs error
		link string
	)
	target := ReportTarget{ChatID: f.resultsChatID, TournamentName: report.TournamentName}
	for _, p := range c.publishers {
		l, err := p.Publish(ctx, target, *report)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %w", ErrPublish, err))
			continue
		}
		if link == "" {
			link = l
		}
	}
	if link != "" {
		errs = multierr.Append(errs, c.store.RecordReport(ctx, f.matchID, link))
	}
	return errs
}

func (c *Committer) syncBracket(ctx context.Context, f followUp, report *Report) error {
	if f.bracketTournamentID == "" || c.bracket == nil {
		return c.store.RecordSync(ctx, f.matchID, models.SyncStatusSkipped)
	}

	err := c.pushResult(ctx, f, report)
	status := models.SyncStatusSynced
	if err != nil {
		status = models.SyncStatusFailed
	}
	return multierr.Append(err, c.store.RecordSync(ctx, f.matchID, status))
}

func (c *Committer) pushResult(ctx context.Context, f followUp, report *Report) error {
	if f.bracketMatchID == "" {
		return fmt.Errorf("%w: no bracket match for %s", ErrBracketSync, f.matchID)
	}
	tournament, err := c.store.GetTournament(ctx, TournamentQuery{ID: f.tournamentID})
	if err != nil {
		return err
	}
	if tournament == nil {
		return fmt.Errorf("%w: tournament %s", ErrNotFound, f.tournamentID)
	}
	scores := BracketScores(report.First.BracketRef, report.Second.BracketRef, report.Score)
	return c.bracket.PushMatchResult(ctx, tournament.Organizer.BracketAPIKey, f.bracketTournamentID, f.bracketMatchID, scores)
}

// BracketScores builds the bracket payload. A side advances only with strictly more wins.
func BracketScores(firstRef, secondRef string, score Score) []ParticipantScore {
	return []ParticipantScore{
		{ParticipantRef: firstRef, Score: score.First, Advancing: score.First > score.Second},
		{ParticipantRef: secondRef, Score: score.Second, Advancing: score.Second > score.First},
	}
}
