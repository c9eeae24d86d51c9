package services

import (
	"context"
	"testing"

	"tournament-report-bot/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	raceHaven   int64 = 1
	raceInferno int64 = 2
	heroGodric  int64 = 10
	heroFreyda  int64 = 11
	heroGrok    int64 = 20
	heroBiara   int64 = 21
)

func testCatalog() *Catalog {
	return NewCatalog(
		[]models.Race{{ID: raceInferno, Name: "Inferno"}, {ID: raceHaven, Name: "Haven"}},
		[]models.Hero{
			{ID: heroGodric, Name: "Godric", RaceID: raceHaven},
			{ID: heroFreyda, Name: "Freyda", RaceID: raceHaven},
			{ID: heroGrok, Name: "Grok", RaceID: raceInferno},
			{ID: heroBiara, Name: "Biara", RaceID: raceInferno},
		},
	)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type fixture struct {
	Organizer  models.Organizer
	Tournament models.Tournament
	Alice      models.Participant
	Bob        models.Participant
	Carol      models.Participant
	Dave       models.Participant // other group
}

// seedTournament creates a tournament with four participants. Alice, Bob and Carol share group 1.
func seedTournament(t *testing.T, db *gorm.DB, mutate func(*models.Tournament)) fixture {
	t.Helper()

	f := fixture{
		Organizer: models.Organizer{ID: uuid.NewString(), Name: "Org", BracketAPIKey: "api-key"},
	}
	f.Tournament = models.Tournament{
		ID:            uuid.NewString(),
		Name:          "Spring Cup",
		OrganizerID:   f.Organizer.ID,
		GameType:      models.GameTypeRMG,
		ReportsChatID: -1001,
		ResultsChatID: -1002,
	}
	if mutate != nil {
		mutate(&f.Tournament)
	}
	require.NoError(t, db.Create(&f.Organizer).Error)
	require.NoError(t, db.Create(&f.Tournament).Error)

	add := func(nick string, telegramID int64, group int, bracketRef string) models.Participant {
		u := models.User{ID: uuid.NewString(), Nickname: nick}
		if telegramID != 0 {
			u.TelegramID = ptr(telegramID)
		}
		require.NoError(t, db.Create(&u).Error)
		p := models.Participant{
			ID:                   uuid.NewString(),
			TournamentID:         f.Tournament.ID,
			UserID:               u.ID,
			Group:                group,
			BracketParticipantID: bracketRef,
		}
		require.NoError(t, db.Create(&p).Error)
		p.User = u
		return p
	}
	f.Alice = add("alice", 101, 1, "b-alice")
	f.Bob = add("bob", 102, 1, "b-bob")
	f.Carol = add("carol", 103, 1, "b-carol")
	f.Dave = add("dave", 104, 2, "b-dave")
	return f
}

// mockStore is a testify mock of Persistence.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetTournament(ctx context.Context, q TournamentQuery) (*models.Tournament, error) {
	args := m.Called(ctx, q)
	t, _ := args.Get(0).(*models.Tournament)
	return t, args.Error(1)
}

func (m *mockStore) GetParticipant(ctx context.Context, q ParticipantQuery) (*models.Participant, error) {
	args := m.Called(ctx, q)
	p, _ := args.Get(0).(*models.Participant)
	return p, args.Error(1)
}

func (m *mockStore) ListParticipants(ctx context.Context, tournamentID string, group int) ([]models.Participant, error) {
	args := m.Called(ctx, tournamentID, group)
	ps, _ := args.Get(0).([]models.Participant)
	return ps, args.Error(1)
}

func (m *mockStore) CreateMatch(ctx context.Context, nm NewMatch) (string, error) {
	args := m.Called(ctx, nm)
	return args.String(0), args.Error(1)
}

func (m *mockStore) SessionRefTaken(ctx context.Context, ref string) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) BulkInsertGames(ctx context.Context, matchID string, games []GameDraft, score Score) error {
	args := m.Called(ctx, matchID, games, score)
	return args.Error(0)
}

func (m *mockStore) RecordReport(ctx context.Context, matchID, link string) error {
	args := m.Called(ctx, matchID, link)
	return args.Error(0)
}

func (m *mockStore) RecordSync(ctx context.Context, matchID, status string) error {
	args := m.Called(ctx, matchID, status)
	return args.Error(0)
}

type mockBracket struct {
	mock.Mock
}

func (m *mockBracket) PushMatchResult(ctx context.Context, apiKey, tournamentID, matchID string, scores []ParticipantScore) error {
	args := m.Called(ctx, apiKey, tournamentID, matchID, scores)
	return args.Error(0)
}

func (m *mockBracket) OpenMatches(ctx context.Context, apiKey, tournamentID, participantRef string) ([]OpenMatch, error) {
	args := m.Called(ctx, apiKey, tournamentID, participantRef)
	om, _ := args.Get(0).([]OpenMatch)
	return om, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, target ReportTarget, report Report) (string, error) {
	args := m.Called(ctx, target, report)
	return args.String(0), args.Error(1)
}

func ptr[T any](v T) *T { return &v }

// completeGame returns a finished game where first or second won.
func completeGame(number int, outcome Outcome) GameDraft {
	g := newGameDraft(number)
	g.FirstRace = ptr(raceHaven)
	g.FirstHero = ptr(heroGodric)
	g.SecondRace = ptr(raceInferno)
	g.SecondHero = ptr(heroGrok)
	g.Outcome = outcome
	return g
}
