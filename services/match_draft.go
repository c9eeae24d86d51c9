package services

import (
	"context"
	"fmt"

	"tournament-report-bot/models"
)

// Candidate is an opponent the player may report against.
type Candidate struct {
	Handle         string `json:"handle"`
	ParticipantID  string `json:"participant_id"`
	BracketMatchID string `json:"bracket_match_id,omitempty"`
}

// GameCountBounds is the inclusive range of games a match may have.
type GameCountBounds struct {
	Min int
	Max int
}

// MatchDraft is the first stage of a report: who was played and how many games.
type MatchDraft struct {
	TournamentID      string      `json:"tournament_id"`
	TournamentName    string      `json:"tournament_name"`
	Player            Side        `json:"player"`
	Candidates        []Candidate `json:"candidates"`
	SelectedOpponent  string      `json:"selected_opponent,omitempty"`
	SelectedGameCount int         `json:"selected_game_count,omitempty"`
}

// PromoteDeps are the collaborators needed to turn a draft into a match.
type PromoteDeps struct {
	Store   Persistence
	Catalog *Catalog
}

func (d *MatchDraft) candidate(ref string) (Candidate, bool) {
	for _, c := range d.Candidates {
		if c.ParticipantID == ref {
			return c, true
		}
	}
	return Candidate{}, false
}

func (d *MatchDraft) SelectOpponent(ref string) error {
	if _, ok := d.candidate(ref); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOpponent, ref)
	}
	d.SelectedOpponent = ref
	return nil
}

func (d *MatchDraft) SelectGameCount(n int, bounds GameCountBounds) error {
	if n < bounds.Min || n > bounds.Max {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, n, bounds.Min, bounds.Max)
	}
	d.SelectedGameCount = n
	return nil
}

// Promote records the match and returns an empty game sequence for it.
// Both participants and the tournament are looked up again, since the draft may be stale.
func (d *MatchDraft) Promote(ctx context.Context, deps PromoteDeps, key string) (*GameDraftSequence, error) {
	if d.SelectedOpponent == "" || d.SelectedGameCount == 0 {
		return nil, ErrIncompleteDraft
	}
	cand, ok := d.candidate(d.SelectedOpponent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOpponent, d.SelectedOpponent)
	}

	tournament, err := deps.Store.GetTournament(ctx, TournamentQuery{ID: d.TournamentID})
	if err != nil {
		return nil, err
	}
	if tournament == nil {
		return nil, fmt.Errorf("%w: tournament %s", ErrNotFound, d.TournamentID)
	}

	player, err := d.resolve(ctx, deps.Store, d.Player.ParticipantID)
	if err != nil {
		return nil, err
	}
	opponent, err := d.resolve(ctx, deps.Store, cand.ParticipantID)
	if err != nil {
		return nil, err
	}

	matchID, err := deps.Store.CreateMatch(ctx, NewMatch{
		TournamentID:      tournament.ID,
		FirstParticipant:  player.ID,
		SecondParticipant: opponent.ID,
		SessionRef:        key,
		BracketMatchID:    cand.BracketMatchID,
	})
	if err != nil {
		return nil, err
	}

	seq := newGameDraftSequence(d.SelectedGameCount, deps.Catalog)
	seq.MatchID = matchID
	seq.TournamentID = tournament.ID
	seq.TournamentName = tournament.Name
	seq.BracketTournamentID = tournament.BracketTournamentID
	seq.BracketMatchID = cand.BracketMatchID
	seq.ResultsChatID = tournament.ResultsChatID
	seq.Rules = rulesOf(tournament)
	seq.Player = sideOf(player)
	seq.Opponent = sideOf(opponent)
	return seq, nil
}

func (d *MatchDraft) resolve(ctx context.Context, store Persistence, id string) (*models.Participant, error) {
	p, err := store.GetParticipant(ctx, ParticipantQuery{ID: id, TournamentID: d.TournamentID})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: participant %s", ErrNotFound, id)
	}
	return p, nil
}

func sideOf(p *models.Participant) Side {
	return Side{
		ParticipantID: p.ID,
		Handle:        p.Handle(),
		BracketRef:    p.BracketParticipantID,
	}
}

func (d *MatchDraft) clone() *MatchDraft {
	out := *d
	out.Candidates = append([]Candidate(nil), d.Candidates...)
	return &out
}
