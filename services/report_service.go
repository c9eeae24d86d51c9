package services

import (
	"context"
	"errors"
	"fmt"

	"tournament-report-bot/models"

	"go.uber.org/zap"
)

type ActionType string

const (
	ActionSelectOpponent  ActionType = "select_opponent"
	ActionSelectGameCount ActionType = "select_game_count"
	ActionPromote         ActionType = "promote"
	ActionEditField       ActionType = "edit_field"
	ActionSetViewMode     ActionType = "set_view_mode"
	ActionNavigate        ActionType = "navigate"
	ActionSubmit          ActionType = "submit"
)

// Action is one user input against a session. Only the fields of its Type are read.
type Action struct {
	Type      ActionType `json:"type"`
	Opponent  string     `json:"opponent,omitempty"`
	GameCount int        `json:"game_count,omitempty"`
	Field     Field      `json:"field,omitempty"`
	Value     string     `json:"value,omitempty"`
	View      ViewMode   `json:"view,omitempty"`
	Delta     int        `json:"delta,omitempty"`
}

// StartRequest opens a report. The tournament is found by TournamentID or by the chat
// reports are filed in; the player by UserID or TelegramID.
type StartRequest struct {
	Key          string `json:"key"`
	TournamentID string `json:"tournament_id,omitempty"`
	ChatID       int64  `json:"chat_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	TelegramID   int64  `json:"telegram_id,omitempty"`
}

// View is a copy of a session that stays valid after the session lock is released.
type View struct {
	Key    string             `json:"key"`
	Phase  Phase              `json:"phase"`
	Match  *MatchDraft        `json:"match,omitempty"`
	Games  *GameDraftSequence `json:"games,omitempty"`
	Report *Report            `json:"report,omitempty"`
	Notice string             `json:"notice,omitempty"`

	Catalog *Catalog `json:"-"`
}

type ReportService struct {
	sessions  *SessionStore
	store     Persistence
	bracket   BracketSync
	catalog   *Catalog
	committer *Committer
	bounds    GameCountBounds
	logger    *zap.Logger
}

func NewReportService(
	sessions *SessionStore,
	store Persistence,
	bracket BracketSync,
	catalog *Catalog,
	committer *Committer,
	bounds GameCountBounds,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		sessions:  sessions,
		store:     store,
		bracket:   bracket,
		catalog:   catalog,
		committer: committer,
		bounds:    bounds,
		logger:    logger.Named("reports"),
	}
}

func (s *ReportService) Bounds() GameCountBounds {
	return s.bounds
}

func (s *ReportService) Catalog() *Catalog {
	return s.catalog
}

// Start resolves the tournament and player and opens a match draft under req.Key.
func (s *ReportService) Start(ctx context.Context, req StartRequest) (*View, error) {
	if req.Key == "" {
		return nil, fmt.Errorf("%w: empty session key", ErrInvalidValue)
	}

	// keys are reusable once a session is evicted, match refs are not
	taken, err := s.store.SessionRefTaken(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, req.Key)
	}

	tournament, err := s.store.GetTournament(ctx, TournamentQuery{ID: req.TournamentID, ReportsChatID: req.ChatID})
	if err != nil {
		return nil, err
	}
	if tournament == nil {
		return nil, fmt.Errorf("%w: no tournament for this chat", ErrNotFound)
	}

	player, err := s.store.GetParticipant(ctx, ParticipantQuery{
		TournamentID: tournament.ID,
		UserID:       req.UserID,
		TelegramID:   req.TelegramID,
	})
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, fmt.Errorf("%w: you are not registered in %s", ErrNotFound, tournament.Name)
	}

	candidates, err := s.candidates(ctx, tournament, player)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Reporter: Actor{UserID: player.UserID, TelegramID: player.User.TelegramAccount()},
		Match: &MatchDraft{
			TournamentID:   tournament.ID,
			TournamentName: tournament.Name,
			Player:         sideOf(player),
			Candidates:     candidates,
		},
	}
	if err := s.sessions.Create(req.Key, sess); err != nil {
		return nil, err
	}

	s.logger.Info("[REPORT] session started",
		zap.String("key", req.Key),
		zap.String("tournament", tournament.Name),
		zap.String("player", player.Handle()),
		zap.Int("candidates", len(candidates)),
	)
	return s.Snapshot(ctx, req.Key)
}

// candidates lists who the player can report against: open bracket matches when the
// tournament has a bracket, otherwise everyone else in the player's group.
func (s *ReportService) candidates(ctx context.Context, t *models.Tournament, player *models.Participant) ([]Candidate, error) {
	if t.HasBracket() && s.bracket != nil && player.BracketParticipantID != "" {
		open, err := s.bracket.OpenMatches(ctx, t.Organizer.BracketAPIKey, t.BracketTournamentID, player.BracketParticipantID)
		if err != nil {
			return nil, err
		}
		out := make([]Candidate, 0, len(open))
		for _, m := range open {
			opp, err := s.store.GetParticipant(ctx, ParticipantQuery{TournamentID: t.ID, BracketRef: m.OpponentRef})
			if err != nil {
				return nil, err
			}
			if opp == nil {
				s.logger.Warn("[REPORT] bracket opponent not registered", zap.String("bracket_ref", m.OpponentRef))
				continue
			}
			out = append(out, Candidate{Handle: opp.Handle(), ParticipantID: opp.ID, BracketMatchID: m.MatchID})
		}
		return out, nil
	}

	group, err := s.store.ListParticipants(ctx, t.ID, player.Group)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(group))
	for _, p := range group {
		if p.ID == player.ID {
			continue
		}
		out = append(out, Candidate{Handle: p.Handle(), ParticipantID: p.ID})
	}
	return out, nil
}

// HandleAction applies one action from actor to the session under key and returns the new state.
// On a soft error the returned view holds the unchanged state and the error message as Notice.
// Actions from anyone but the reporter fail with ErrNotYourReport and a nil view.
func (s *ReportService) HandleAction(ctx context.Context, key string, actor Actor, action Action) (*View, error) {
	if action.Type == ActionSubmit {
		if err := s.sessions.With(key, func(sess *Session) error { return sess.authorize(actor) }); err != nil {
			return nil, err
		}
		return s.submit(ctx, key)
	}

	var view *View
	err := s.sessions.With(key, func(sess *Session) error {
		if err := sess.authorize(actor); err != nil {
			return err
		}
		applyErr := s.apply(ctx, sess, action)
		view = s.snapshotOf(sess)
		if applyErr != nil {
			view.Notice = UserMessage(applyErr)
		}
		return applyErr
	})
	if err != nil {
		// view is nil when the session is gone, the actor is a stranger or the handler panicked
		return view, err
	}
	return view, nil
}

func (s *ReportService) apply(ctx context.Context, sess *Session, action Action) error {
	switch action.Type {
	case ActionSelectOpponent, ActionSelectGameCount, ActionPromote:
		if sess.Match == nil {
			return ErrWrongPhase
		}
	case ActionEditField, ActionSetViewMode, ActionNavigate:
		if sess.Games == nil {
			return ErrWrongPhase
		}
	}

	switch action.Type {
	case ActionSelectOpponent:
		return sess.Match.SelectOpponent(action.Opponent)
	case ActionSelectGameCount:
		return sess.Match.SelectGameCount(action.GameCount, s.bounds)
	case ActionPromote:
		seq, err := sess.Match.Promote(ctx, PromoteDeps{Store: s.store, Catalog: s.catalog}, sess.Key)
		if err != nil {
			return err
		}
		sess.Games = seq
		sess.Match = nil
		s.logger.Info("[REPORT] match created", zap.String("key", sess.Key), zap.String("match_id", seq.MatchID), zap.Int("games", len(seq.Games)))
		return nil
	case ActionEditField:
		return sess.Games.EditField(action.Field, action.Value)
	case ActionSetViewMode:
		return sess.Games.SetViewMode(action.View)
	case ActionNavigate:
		return sess.Games.Navigate(action.Delta)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedAction, action.Type)
}

func (s *ReportService) submit(ctx context.Context, key string) (*View, error) {
	_, err := s.committer.Submit(ctx, key)

	var warning *CommitWarning
	switch {
	case err == nil, errors.As(err, &warning):
	case IsSoft(err) || IsCollaborator(err):
		view, snapErr := s.Snapshot(ctx, key)
		if snapErr != nil {
			return nil, err
		}
		view.Notice = UserMessage(err)
		return view, err
	default:
		return nil, err
	}

	view, snapErr := s.Snapshot(ctx, key)
	if snapErr != nil {
		return nil, snapErr
	}
	if warning != nil {
		view.Notice = "Report saved. Some follow-up steps failed and will be retried."
	}
	return view, nil
}

// Snapshot returns the current state of a session.
func (s *ReportService) Snapshot(ctx context.Context, key string) (*View, error) {
	var view *View
	err := s.sessions.With(key, func(sess *Session) error {
		view = s.snapshotOf(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *ReportService) snapshotOf(sess *Session) *View {
	v := &View{Key: sess.Key, Phase: sess.Phase(), Catalog: s.catalog}
	if sess.Match != nil {
		v.Match = sess.Match.clone()
	}
	if sess.Games != nil {
		v.Games = sess.Games.clone()
		v.Report = sess.Games.Report.clone()
	}
	return v
}

// UserMessage is the text shown to a chat user for err.
func UserMessage(err error) string {
	switch {
	case IsSoft(err):
		return err.Error()
	case IsCollaborator(err):
		return "Something went wrong on our side, please try again."
	}
	return "Unexpected error."
}
