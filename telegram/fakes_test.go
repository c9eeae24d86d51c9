package telegram

import (
	"context"
	"sync"

	"tournament-report-bot/models"
	"tournament-report-bot/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
)

// fakeSender records everything sent to Telegram.
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: 500 + f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) answers() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if a, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, a)
		}
	}
	return out
}

type mockReports struct {
	mock.Mock
}

func (m *mockReports) Start(ctx context.Context, req services.StartRequest) (*services.View, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*services.View)
	return v, args.Error(1)
}

func (m *mockReports) HandleAction(ctx context.Context, key string, actor services.Actor, action services.Action) (*services.View, error) {
	args := m.Called(ctx, key, actor, action)
	v, _ := args.Get(0).(*services.View)
	return v, args.Error(1)
}

func (m *mockReports) Bounds() services.GameCountBounds {
	return services.GameCountBounds{Min: 1, Max: 3}
}

func testCatalog() *services.Catalog {
	return services.NewCatalog(
		[]models.Race{{ID: 1, Name: "Haven"}, {ID: 2, Name: "Inferno"}},
		[]models.Hero{
			{ID: 10, Name: "Godric", RaceID: 1},
			{ID: 11, Name: "Freyda", RaceID: 1},
			{ID: 20, Name: "Grok", RaceID: 2},
		},
	)
}

func draftView() *services.View {
	return &services.View{
		Key:   "tg:-1001:501",
		Phase: services.PhaseMatchDraft,
		Match: &services.MatchDraft{
			TournamentName: "Spring Cup",
			Player:         services.Side{ParticipantID: "p1", Handle: "alice"},
			Candidates: []services.Candidate{
				{Handle: "bob", ParticipantID: "6f1c2a8e-0d5b-4c47-9a3e-2b7f8e1d4c90"},
				{Handle: "carol", ParticipantID: "p3"},
			},
		},
	}
}

func gamesView(rules services.Rules, count int) *services.View {
	seq := &services.GameDraftSequence{
		MatchID:        "m1",
		TournamentName: "Spring Cup",
		Player:         services.Side{Handle: "alice"},
		Opponent:       services.Side{Handle: "bob"},
		Rules:          rules,
		Cursor:         1,
	}
	for i := 1; i <= count; i++ {
		seq.Games = append(seq.Games, services.GameDraft{
			Number:   i,
			ViewMode: services.ViewPlayerData,
			Outcome:  services.OutcomeUndecided,
			Victory:  services.VictoryFinalBattle,
		})
	}
	return &services.View{Key: "k", Phase: services.PhaseGames, Games: seq, Catalog: testCatalog()}
}
