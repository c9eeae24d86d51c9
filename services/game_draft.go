package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tournament-report-bot/models"
)

type ViewMode string

const (
	ViewPlayerData   ViewMode = "player"
	ViewOpponentData ViewMode = "opponent"
	ViewBargainsData ViewMode = "bargains"
	ViewResultData   ViewMode = "result"
)

type Outcome string

const (
	OutcomeUndecided Outcome = models.OutcomeUndecided
	OutcomeFirstWon  Outcome = models.OutcomeFirstWon
	OutcomeSecondWon Outcome = models.OutcomeSecondWon
)

type BargainsColor string

const (
	BargainsRed  BargainsColor = "red"
	BargainsBlue BargainsColor = "blue"
)

// Victory is how a game ended. Only reported for RMG tournaments.
type Victory string

const (
	VictoryFinalBattle Victory = "final_battle"
	VictoryNeutrals    Victory = "neutrals"
	VictorySurrender   Victory = "surrender"
)

// Field names accepted by EditField.
type Field string

const (
	FieldFirstRace      Field = "first_race"
	FieldFirstHero      Field = "first_hero"
	FieldSecondRace     Field = "second_race"
	FieldSecondHero     Field = "second_hero"
	FieldBargainsColor  Field = "bargains_color"
	FieldBargainsAmount Field = "bargains_amount"
	FieldOutcome        Field = "outcome"
	FieldVictory        Field = "victory"
)

func parseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(s); m {
	case ViewPlayerData, ViewOpponentData, ViewBargainsData, ViewResultData:
		return m, nil
	}
	return "", fmt.Errorf("%w: view mode %q", ErrInvalidValue, s)
}

func parseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeUndecided, OutcomeFirstWon, OutcomeSecondWon:
		return o, nil
	}
	return "", fmt.Errorf("%w: outcome %q", ErrInvalidValue, s)
}

func parseBargainsColor(s string) (BargainsColor, error) {
	switch c := BargainsColor(strings.ToLower(s)); c {
	case BargainsRed, BargainsBlue:
		return c, nil
	}
	return "", fmt.Errorf("%w: bargains color %q", ErrInvalidValue, s)
}

func parseVictory(s string) (Victory, error) {
	switch v := Victory(s); v {
	case VictoryFinalBattle, VictoryNeutrals, VictorySurrender:
		return v, nil
	}
	return "", fmt.Errorf("%w: victory %q", ErrInvalidValue, s)
}

// GameDraft is one game of a match being filled in.
type GameDraft struct {
	Number         int            `json:"number"`
	ViewMode       ViewMode       `json:"view_mode"`
	FirstRace      *int64         `json:"first_race,omitempty"`
	FirstHero      *int64         `json:"first_hero,omitempty"`
	SecondRace     *int64         `json:"second_race,omitempty"`
	SecondHero     *int64         `json:"second_hero,omitempty"`
	BargainsColor  *BargainsColor `json:"bargains_color,omitempty"`
	BargainsAmount int64          `json:"bargains_amount"`
	Outcome        Outcome        `json:"outcome"`
	Victory        Victory        `json:"victory"`
}

func newGameDraft(number int) GameDraft {
	return GameDraft{
		Number:   number,
		ViewMode: ViewPlayerData,
		Outcome:  OutcomeUndecided,
		Victory:  VictoryFinalBattle,
	}
}

// Complete reports whether the game has everything needed to be stored.
func (g *GameDraft) Complete(requireColor bool) bool {
	if g.FirstRace == nil || g.FirstHero == nil || g.SecondRace == nil || g.SecondHero == nil {
		return false
	}
	if g.Outcome == OutcomeUndecided {
		return false
	}
	if requireColor && g.BargainsColor == nil {
		return false
	}
	return true
}

func (g GameDraft) clone() GameDraft {
	out := g
	out.FirstRace = clonePtr(g.FirstRace)
	out.FirstHero = clonePtr(g.FirstHero)
	out.SecondRace = clonePtr(g.SecondRace)
	out.SecondHero = clonePtr(g.SecondHero)
	out.BargainsColor = clonePtr(g.BargainsColor)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Side is one participant of a match.
type Side struct {
	ParticipantID string `json:"participant_id"`
	Handle        string `json:"handle"`
	BracketRef    string `json:"bracket_ref,omitempty"`
}

// Rules are the tournament flags that shape the report.
type Rules struct {
	GameType         string `json:"game_type"`
	UseBargains      bool   `json:"use_bargains"`
	UseBargainsColor bool   `json:"use_bargains_color"`
	UseForeignHeroes bool   `json:"use_foreign_heroes"`
}

func rulesOf(t *models.Tournament) Rules {
	return Rules{
		GameType:         t.GameType,
		UseBargains:      t.UseBargains,
		UseBargainsColor: t.UseBargains && t.UseBargainsColor,
		UseForeignHeroes: t.UseForeignHeroes,
	}
}

// Score counts won games per side.
type Score struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

func scoreOf(games []GameDraft) Score {
	var s Score
	for _, g := range games {
		switch g.Outcome {
		case OutcomeFirstWon:
			s.First++
		case OutcomeSecondWon:
			s.Second++
		}
	}
	return s
}

// Report is the immutable result of a committed sequence.
type Report struct {
	MatchID        string       `json:"match_id"`
	TournamentID   string       `json:"tournament_id"`
	TournamentName string       `json:"tournament_name"`
	Rules          Rules        `json:"rules"`
	First          Side         `json:"first"`
	Second         Side         `json:"second"`
	Score          Score        `json:"score"`
	Games          []ReportGame `json:"games"`
	CommittedAt    time.Time    `json:"committed_at"`
}

// ReportGame is a game with catalog ids resolved to names.
type ReportGame struct {
	Number         int     `json:"number"`
	FirstRace      string  `json:"first_race"`
	FirstHero      string  `json:"first_hero"`
	SecondRace     string  `json:"second_race"`
	SecondHero     string  `json:"second_hero"`
	BargainsColor  string  `json:"bargains_color,omitempty"`
	BargainsAmount int64   `json:"bargains_amount"`
	Outcome        Outcome `json:"outcome"`
	Victory        Victory `json:"victory,omitempty"`
}

func (r *Report) clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Games = append([]ReportGame(nil), r.Games...)
	return &out
}

// GameDraftSequence holds the per-game drafts of a promoted match and the cursor.
type GameDraftSequence struct {
	MatchID             string      `json:"match_id"`
	TournamentID        string      `json:"tournament_id"`
	TournamentName      string      `json:"tournament_name"`
	BracketTournamentID string      `json:"bracket_tournament_id,omitempty"`
	BracketMatchID      string      `json:"bracket_match_id,omitempty"`
	ResultsChatID       int64       `json:"-"`
	Player              Side        `json:"player"`
	Opponent            Side        `json:"opponent"`
	Rules               Rules       `json:"rules"`
	Cursor              int         `json:"cursor"`
	Games               []GameDraft `json:"games"`
	Committed           bool        `json:"committed"`
	Report              *Report     `json:"report,omitempty"`

	catalog *Catalog
}

func newGameDraftSequence(count int, catalog *Catalog) *GameDraftSequence {
	games := make([]GameDraft, count)
	for i := range games {
		games[i] = newGameDraft(i + 1)
	}
	return &GameDraftSequence{Cursor: 1, Games: games, catalog: catalog}
}

// Current returns the game under the cursor.
func (s *GameDraftSequence) Current() *GameDraft {
	return &s.Games[s.Cursor-1]
}

func (s *GameDraftSequence) requireColor() bool {
	return s.Rules.UseBargainsColor
}

// SetViewMode switches which part of the current game is shown. Allowed at any time.
func (s *GameDraftSequence) SetViewMode(mode ViewMode) error {
	if _, err := parseViewMode(string(mode)); err != nil {
		return err
	}
	s.Current().ViewMode = mode
	return nil
}

// Navigate moves the cursor by -1 or +1. Moving forward requires the current game to be complete.
func (s *GameDraftSequence) Navigate(delta int) error {
	if s.Committed {
		return ErrSessionClosed
	}
	switch delta {
	case -1:
		if s.Cursor <= 1 {
			return ErrNavigationBounds
		}
		s.Cursor--
		return nil
	case 1:
		if !s.Current().Complete(s.requireColor()) {
			return fmt.Errorf("%w: game %d", ErrIncompleteGame, s.Cursor)
		}
		if s.Cursor < len(s.Games) {
			s.Cursor++
		}
		return nil
	}
	return fmt.Errorf("%w: navigation step %d", ErrInvalidValue, delta)
}

// FirstIncomplete returns the number of the first incomplete game, or 0 when all are complete.
// The game at the cursor is checked first.
func (s *GameDraftSequence) FirstIncomplete() int {
	if !s.Current().Complete(s.requireColor()) {
		return s.Cursor
	}
	for i := range s.Games {
		if !s.Games[i].Complete(s.requireColor()) {
			return s.Games[i].Number
		}
	}
	return 0
}

// EditField validates value and writes it into the current game.
func (s *GameDraftSequence) EditField(field Field, value string) error {
	if s.Committed {
		return ErrSessionClosed
	}
	game := s.Current()
	value = strings.TrimSpace(value)

	switch field {
	case FieldFirstRace:
		return s.setRace(&game.FirstRace, &game.FirstHero, value)
	case FieldSecondRace:
		return s.setRace(&game.SecondRace, &game.SecondHero, value)
	case FieldFirstHero:
		return s.setHero(&game.FirstRace, &game.FirstHero, value)
	case FieldSecondHero:
		return s.setHero(&game.SecondRace, &game.SecondHero, value)
	case FieldBargainsColor:
		if !s.Rules.UseBargainsColor {
			return fmt.Errorf("%w: tournament does not use bargains colors", ErrInvalidValue)
		}
		c, err := parseBargainsColor(value)
		if err != nil {
			return err
		}
		game.BargainsColor = &c
	case FieldBargainsAmount:
		if !s.Rules.UseBargains {
			return fmt.Errorf("%w: tournament does not use bargains", ErrInvalidValue)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bargains amount %q", ErrInvalidValue, value)
		}
		game.BargainsAmount = n
	case FieldOutcome:
		o, err := parseOutcome(value)
		if err != nil {
			return err
		}
		game.Outcome = o
	case FieldVictory:
		v, err := parseVictory(value)
		if err != nil {
			return err
		}
		game.Victory = v
	default:
		return fmt.Errorf("%w: field %q", ErrInvalidValue, field)
	}
	return nil
}

func (s *GameDraftSequence) setRace(race, hero **int64, value string) error {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: race %q", ErrInvalidValue, value)
	}
	if _, ok := s.catalog.Race(id); !ok {
		return fmt.Errorf("%w: race %d", ErrInvalidValue, id)
	}
	*race = &id

	if *hero != nil && !s.Rules.UseForeignHeroes {
		if h, ok := s.catalog.Hero(**hero); !ok || h.RaceID != id {
			*hero = nil
		}
	}
	return nil
}

func (s *GameDraftSequence) setHero(race, hero **int64, value string) error {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: hero %q", ErrInvalidValue, value)
	}
	h, ok := s.catalog.Hero(id)
	if !ok {
		return fmt.Errorf("%w: hero %d", ErrInvalidValue, id)
	}
	if !s.Rules.UseForeignHeroes {
		if *race == nil {
			raceID := h.RaceID
			*race = &raceID
		} else if **race != h.RaceID {
			return fmt.Errorf("%w: %s", ErrForeignHero, h.Name)
		}
	}
	*hero = &id
	return nil
}

// clone returns a deep copy safe to hand out after the session lock is released.
func (s *GameDraftSequence) clone() *GameDraftSequence {
	out := *s
	out.Games = make([]GameDraft, len(s.Games))
	for i, g := range s.Games {
		out.Games[i] = g.clone()
	}
	out.Report = s.Report.clone()
	return &out
}

// buildReport resolves catalog names for the stored games.
func (s *GameDraftSequence) buildReport(score Score, at time.Time) *Report {
	games := make([]ReportGame, len(s.Games))
	for i, g := range s.Games {
		rg := ReportGame{
			Number:         g.Number,
			FirstRace:      s.catalog.RaceName(g.FirstRace),
			FirstHero:      s.catalog.HeroName(g.FirstHero),
			SecondRace:     s.catalog.RaceName(g.SecondRace),
			SecondHero:     s.catalog.HeroName(g.SecondHero),
			BargainsAmount: g.BargainsAmount,
			Outcome:        g.Outcome,
		}
		if g.BargainsColor != nil {
			rg.BargainsColor = BargainsColorLabel(*g.BargainsColor)
		}
		if s.Rules.GameType == models.GameTypeRMG {
			rg.Victory = g.Victory
		}
		games[i] = rg
	}
	return &Report{
		MatchID:        s.MatchID,
		TournamentID:   s.TournamentID,
		TournamentName: s.TournamentName,
		Rules:          s.Rules,
		First:          s.Player,
		Second:         s.Opponent,
		Score:          score,
		Games:          games,
		CommittedAt:    at,
	}
}
