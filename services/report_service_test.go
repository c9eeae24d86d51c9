package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"tournament-report-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type serviceEnv struct {
	db        *gorm.DB
	fx        fixture
	sessions  *SessionStore
	bracket   *mockBracket
	publisher *mockPublisher
	svc       *ReportService
}

func newServiceEnv(t *testing.T, mutate func(*models.Tournament)) *serviceEnv {
	t.Helper()
	db := newTestDB(t)
	env := &serviceEnv{
		db:        db,
		fx:        seedTournament(t, db, mutate),
		sessions:  NewSessionStore(time.Hour, time.Hour, zap.NewNop()),
		bracket:   new(mockBracket),
		publisher: new(mockPublisher),
	}
	store := NewTournamentStore(db)
	committer := NewCommitter(env.sessions, store, env.bracket, []ReportPublisher{env.publisher}, zap.NewNop())
	env.svc = NewReportService(env.sessions, store, env.bracket, testCatalog(), committer,
		GameCountBounds{Min: 1, Max: 5}, zap.NewNop())
	return env
}

func (env *serviceEnv) act(t *testing.T, key string, a Action) *View {
	t.Helper()
	v, err := env.svc.HandleAction(context.Background(), key, reporter, a)
	require.NoError(t, err, "action %s", a.Type)
	return v
}

// reporter is alice, who opens every session in these tests.
var reporter = Actor{TelegramID: 101}

func edit(field Field, value int64) Action {
	return Action{Type: ActionEditField, Field: field, Value: strconv.FormatInt(value, 10)}
}

func TestStart_GroupCandidates(t *testing.T) {
	env := newServiceEnv(t, nil)

	view, err := env.svc.Start(context.Background(), StartRequest{Key: "tg:1:1", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)

	assert.Equal(t, PhaseMatchDraft, view.Phase)
	require.NotNil(t, view.Match)
	assert.Equal(t, "alice", view.Match.Player.Handle)
	assert.Equal(t, "Spring Cup", view.Match.TournamentName)

	var handles []string
	for _, c := range view.Match.Candidates {
		handles = append(handles, c.Handle)
		assert.Empty(t, c.BracketMatchID)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, handles)
	env.bracket.AssertNotCalled(t, "OpenMatches", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_BracketCandidates(t *testing.T) {
	env := newServiceEnv(t, func(tr *models.Tournament) { tr.BracketTournamentID = "bt-1" })
	env.bracket.On("OpenMatches", mock.Anything, "api-key", "bt-1", "b-alice").Return([]OpenMatch{
		{MatchID: "bm-1", PlayerRef: "b-alice", OpponentRef: "b-dave"},
		{MatchID: "bm-2", PlayerRef: "b-alice", OpponentRef: "b-ghost"},
	}, nil).Once()

	view, err := env.svc.Start(context.Background(), StartRequest{Key: "k", TournamentID: env.fx.Tournament.ID, UserID: env.fx.Alice.UserID})
	require.NoError(t, err)

	// unregistered bracket opponents are skipped
	require.Len(t, view.Match.Candidates, 1)
	assert.Equal(t, Candidate{Handle: "dave", ParticipantID: env.fx.Dave.ID, BracketMatchID: "bm-1"}, view.Match.Candidates[0])
	env.bracket.AssertExpectations(t)
}

func TestStart_Errors(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Start(ctx, StartRequest{ChatID: -1001, TelegramID: 101})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -9999, TelegramID: 101})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 999})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)
	_, err = env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 102})
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestStart_KeyOfFiledMatch(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)
	env.act(t, "k", Action{Type: ActionSelectOpponent, Opponent: env.fx.Bob.ID})
	env.act(t, "k", Action{Type: ActionSelectGameCount, GameCount: 1})
	env.act(t, "k", Action{Type: ActionPromote})

	// the sweep evicts the session but the match keeps its ref
	env.sessions.Remove("k")

	_, err = env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	assert.ErrorIs(t, err, ErrSessionExists)
	assert.Zero(t, env.sessions.Len())
}

func TestHandleAction_OnlyReporterMayAct(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)

	bob := Actor{TelegramID: 102, UserID: env.fx.Bob.UserID}
	for _, stranger := range []Actor{bob, {}, {UserID: env.fx.Bob.UserID}} {
		view, err := env.svc.HandleAction(ctx, "k", stranger, Action{Type: ActionSelectOpponent, Opponent: env.fx.Carol.ID})
		assert.ErrorIs(t, err, ErrNotYourReport)
		assert.True(t, IsSoft(err))
		assert.Nil(t, view)
	}

	// the reporter is known by user id as well
	env.act(t, "k", Action{Type: ActionSelectOpponent, Opponent: env.fx.Bob.ID})
	_, err = env.svc.HandleAction(ctx, "k", Actor{UserID: env.fx.Alice.UserID}, Action{Type: ActionSelectGameCount, GameCount: 1})
	require.NoError(t, err)
	env.act(t, "k", Action{Type: ActionPromote})
	env.act(t, "k", edit(FieldFirstHero, heroGodric))
	env.act(t, "k", edit(FieldSecondHero, heroGrok))
	env.act(t, "k", Action{Type: ActionEditField, Field: FieldOutcome, Value: string(OutcomeFirstWon)})

	view, err := env.svc.HandleAction(ctx, "k", bob, Action{Type: ActionSubmit})
	assert.ErrorIs(t, err, ErrNotYourReport)
	assert.Nil(t, view)

	view, err = env.svc.Snapshot(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, PhaseGames, view.Phase)
	var count int64
	require.NoError(t, env.db.Model(&models.Game{}).Count(&count).Error)
	assert.Zero(t, count)
	env.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportFlow_EndToEnd(t *testing.T) {
	env := newServiceEnv(t, func(tr *models.Tournament) {
		tr.UseBargains = true
		tr.UseBargainsColor = true
	})
	ctx := context.Background()

	_, err := env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)

	env.act(t, "k", Action{Type: ActionSelectOpponent, Opponent: env.fx.Bob.ID})
	env.act(t, "k", Action{Type: ActionSelectGameCount, GameCount: 2})
	view := env.act(t, "k", Action{Type: ActionPromote})
	assert.Equal(t, PhaseGames, view.Phase)
	require.NotNil(t, view.Games)
	assert.Nil(t, view.Match)
	assert.Len(t, view.Games.Games, 2)

	for i, outcome := range []Outcome{OutcomeFirstWon, OutcomeSecondWon} {
		env.act(t, "k", edit(FieldFirstRace, raceHaven))
		env.act(t, "k", edit(FieldFirstHero, heroFreyda))
		env.act(t, "k", Action{Type: ActionSetViewMode, View: ViewOpponentData})
		env.act(t, "k", edit(FieldSecondRace, raceInferno))
		env.act(t, "k", edit(FieldSecondHero, heroBiara))
		env.act(t, "k", Action{Type: ActionEditField, Field: FieldBargainsColor, Value: "blue"})
		env.act(t, "k", Action{Type: ActionEditField, Field: FieldBargainsAmount, Value: "1500"})
		env.act(t, "k", Action{Type: ActionEditField, Field: FieldOutcome, Value: string(outcome)})
		env.act(t, "k", Action{Type: ActionEditField, Field: FieldVictory, Value: string(VictoryNeutrals)})
		if i == 0 {
			view = env.act(t, "k", Action{Type: ActionNavigate, Delta: 1})
			assert.Equal(t, 2, view.Games.Cursor)
		}
	}

	env.publisher.On("Publish", mock.Anything, ReportTarget{ChatID: -1002, TournamentName: "Spring Cup"}, mock.Anything).
		Return("https://t.me/c/1002/77", nil).Once()

	view, err = env.svc.HandleAction(ctx, "k", reporter, Action{Type: ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, view.Phase)
	assert.Empty(t, view.Notice)
	require.NotNil(t, view.Report)
	assert.Equal(t, Score{First: 1, Second: 1}, view.Report.Score)
	assert.Equal(t, "Blue", view.Report.Games[0].BargainsColor)
	assert.Equal(t, "Freyda", view.Report.Games[1].FirstHero)

	var match models.Match
	require.NoError(t, env.db.Preload("Games").Where("session_ref = ?", "k").First(&match).Error)
	assert.Equal(t, 1, match.FirstScore)
	assert.Equal(t, 1, match.SecondScore)
	assert.Equal(t, "https://t.me/c/1002/77", match.ReportLink)
	assert.Equal(t, models.SyncStatusSkipped, match.SyncStatus)
	require.Len(t, match.Games, 2)
	for _, g := range match.Games {
		assert.Equal(t, heroBiara, g.SecondPlayerHero)
		assert.Equal(t, int64(1500), g.BargainsAmount)
		require.NotNil(t, g.BargainsColor)
		assert.Equal(t, "blue", *g.BargainsColor)
		assert.Equal(t, string(VictoryNeutrals), g.Victory)
	}

	// edits after submit are refused and nothing changes
	view, err = env.svc.HandleAction(ctx, "k", reporter, edit(FieldFirstRace, raceInferno))
	assert.ErrorIs(t, err, ErrSessionClosed)
	require.NotNil(t, view)
	assert.Equal(t, UserMessage(err), view.Notice)
	assert.Equal(t, "Haven", view.Report.Games[0].FirstRace)

	view, err = env.svc.HandleAction(ctx, "k", reporter, Action{Type: ActionNavigate, Delta: -1})
	assert.ErrorIs(t, err, ErrSessionClosed)
	require.NotNil(t, view)
	assert.Equal(t, 2, view.Games.Cursor)
}

func TestHandleAction_SoftErrorKeepsState(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)

	view, err := env.svc.HandleAction(ctx, "k", reporter, Action{Type: ActionSelectGameCount, GameCount: 9})
	assert.ErrorIs(t, err, ErrOutOfRange)
	require.NotNil(t, view)
	assert.Zero(t, view.Match.SelectedGameCount)
	assert.NotEmpty(t, view.Notice)

	view, err = env.svc.HandleAction(ctx, "k", reporter, Action{Type: ActionPromote})
	assert.ErrorIs(t, err, ErrIncompleteDraft)
	assert.Equal(t, PhaseMatchDraft, view.Phase)

	_, err = env.svc.HandleAction(ctx, "k", reporter, Action{Type: ActionNavigate, Delta: 1})
	assert.ErrorIs(t, err, ErrWrongPhase)

	_, err = env.svc.HandleAction(ctx, "k", reporter, Action{Type: ActionSubmit})
	assert.ErrorIs(t, err, ErrWrongPhase)

	_, err = env.svc.HandleAction(ctx, "k", reporter, Action{Type: "dance"})
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	assert.False(t, IsSoft(err))

	_, err = env.svc.HandleAction(ctx, "gone", reporter, Action{Type: ActionPromote})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestHandleAction_SubmitWarningBecomesNotice(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)
	env.act(t, "k", Action{Type: ActionSelectOpponent, Opponent: env.fx.Carol.ID})
	env.act(t, "k", Action{Type: ActionSelectGameCount, GameCount: 1})
	env.act(t, "k", Action{Type: ActionPromote})

	// hero first: the race follows the hero when foreign heroes are off
	env.act(t, "k", edit(FieldFirstHero, heroGodric))
	env.act(t, "k", edit(FieldSecondHero, heroGrok))
	view := env.act(t, "k", Action{Type: ActionEditField, Field: FieldOutcome, Value: string(OutcomeSecondWon)})
	assert.Equal(t, raceHaven, *view.Games.Current().FirstRace)

	env.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("telegram down")).Once()

	view, err = env.svc.HandleAction(ctx, "k", reporter, Action{Type: ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, view.Phase)
	assert.Contains(t, view.Notice, "Report saved")
	assert.Equal(t, Score{Second: 1}, view.Report.Score)
}

func TestSnapshot_IsDetached(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.Start(ctx, StartRequest{Key: "k", ChatID: -1001, TelegramID: 101})
	require.NoError(t, err)

	view, err := env.svc.Snapshot(ctx, "k")
	require.NoError(t, err)
	view.Match.Candidates[0].Handle = "mallory"
	view.Match.SelectedGameCount = 4

	again, err := env.svc.Snapshot(ctx, "k")
	require.NoError(t, err)
	assert.NotEqual(t, "mallory", again.Match.Candidates[0].Handle)
	assert.Zero(t, again.Match.SelectedGameCount)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, ErrIncompleteGame.Error(), UserMessage(ErrIncompleteGame))
	assert.Equal(t, "Something went wrong on our side, please try again.", UserMessage(persistenceErr("x", errors.New("y"))))
	assert.Equal(t, "Unexpected error.", UserMessage(errors.New("boom")))
}
