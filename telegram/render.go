package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"tournament-report-bot/models"
	"tournament-report-bot/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// upper builds a fresh caser per call; a cases.Caser is stateful and updates render concurrently.
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

const (
	buttonsPerRow = 3
	placeholder   = "-"
)

// Render builds the message text and keyboard for a session view.
// A committed view gets the final report and no keyboard.
func Render(view *services.View, bounds services.GameCountBounds) (string, *tgbotapi.InlineKeyboardMarkup) {
	switch view.Phase {
	case services.PhaseMatchDraft:
		return renderMatchDraft(view.Match, bounds)
	case services.PhaseGames:
		return renderGames(view.Games, view.Catalog)
	case services.PhaseCommitted:
		return ReportText(view.Report), nil
	}
	return "", nil
}

func renderMatchDraft(d *services.MatchDraft, bounds services.GameCountBounds) (string, *tgbotapi.InlineKeyboardMarkup) {
	opponent := placeholder
	for _, c := range d.Candidates {
		if c.ParticipantID == d.SelectedOpponent {
			opponent = c.Handle
		}
	}
	count := placeholder
	if d.SelectedGameCount > 0 {
		count = strconv.Itoa(d.SelectedGameCount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(upper(d.TournamentName)))
	fmt.Fprintf(&b, "Player: %s\n", html.EscapeString(d.Player.Handle))
	fmt.Fprintf(&b, "Opponent: %s\n", html.EscapeString(opponent))
	fmt.Fprintf(&b, "Games: %s", count)
	if len(d.Candidates) == 0 {
		b.WriteString("\n\nNo opponents available.")
	}

	var buttons []tgbotapi.InlineKeyboardButton
	for _, c := range d.Candidates {
		label := c.Handle
		if c.ParticipantID == d.SelectedOpponent {
			label = "✅ " + label
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, callbackData(verbOpponent, c.ParticipantID)))
	}
	rows := chunk(buttons, buttonsPerRow)

	var counts []tgbotapi.InlineKeyboardButton
	for n := bounds.Min; n <= bounds.Max; n++ {
		label := strconv.Itoa(n)
		if n == d.SelectedGameCount {
			label = "✅ " + label
		}
		counts = append(counts, tgbotapi.NewInlineKeyboardButtonData(label, callbackData(verbCount, strconv.Itoa(n))))
	}
	rows = append(rows, counts)

	if d.SelectedOpponent != "" && d.SelectedGameCount > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Continue ▶", callbackData(verbPromote)),
		))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &markup
}

func renderGames(seq *services.GameDraftSequence, catalog *services.Catalog) (string, *tgbotapi.InlineKeyboardMarkup) {
	game := seq.Games[seq.Cursor-1]

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(upper(seq.TournamentName)))
	fmt.Fprintf(&b, "%s vs %s\n", html.EscapeString(seq.Player.Handle), html.EscapeString(seq.Opponent.Handle))
	fmt.Fprintf(&b, "<b>Game %d of %d</b>\n\n", game.Number, len(seq.Games))
	fmt.Fprintf(&b, "%s: %s, %s\n", html.EscapeString(seq.Player.Handle),
		html.EscapeString(catalog.RaceName(game.FirstRace)), html.EscapeString(catalog.HeroName(game.FirstHero)))
	fmt.Fprintf(&b, "%s: %s, %s\n", html.EscapeString(seq.Opponent.Handle),
		html.EscapeString(catalog.RaceName(game.SecondRace)), html.EscapeString(catalog.HeroName(game.SecondHero)))
	if seq.Rules.UseBargains {
		color := ""
		if game.BargainsColor != nil {
			color = services.BargainsColorLabel(*game.BargainsColor) + " "
		}
		fmt.Fprintf(&b, "Bargains: %s%d\n", color, game.BargainsAmount)
	}
	fmt.Fprintf(&b, "Result: %s", outcomeLabel(game.Outcome, seq.Player.Handle, seq.Opponent.Handle))
	if seq.Rules.GameType == models.GameTypeRMG && game.Outcome != services.OutcomeUndecided {
		fmt.Fprintf(&b, " (%s)", victoryLabel(game.Victory))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, viewTabs(seq.Rules, game.ViewMode))

	switch game.ViewMode {
	case services.ViewPlayerData:
		rows = append(rows, pickerRows(catalog, seq.Rules, game.FirstRace, game.FirstHero,
			services.FieldFirstRace, services.FieldFirstHero)...)
	case services.ViewOpponentData:
		rows = append(rows, pickerRows(catalog, seq.Rules, game.SecondRace, game.SecondHero,
			services.FieldSecondRace, services.FieldSecondHero)...)
	case services.ViewBargainsData:
		rows = append(rows, bargainsRows(catalog, seq.Rules, game)...)
	case services.ViewResultData:
		rows = append(rows, resultRows(seq, game)...)
	}

	nav := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀", callbackData(verbNavigate, "-1")),
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", game.Number, len(seq.Games)), callbackData(verbNoop)),
		tgbotapi.NewInlineKeyboardButtonData("▶", callbackData(verbNavigate, "1")),
	)
	rows = append(rows, nav)
	if seq.Cursor == len(seq.Games) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Submit report", callbackData(verbSubmit)),
		))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &markup
}

func viewTabs(rules services.Rules, current services.ViewMode) []tgbotapi.InlineKeyboardButton {
	tabs := []struct {
		mode  services.ViewMode
		label string
	}{
		{services.ViewPlayerData, "Player"},
		{services.ViewOpponentData, "Opponent"},
		{services.ViewBargainsData, "Bargains"},
		{services.ViewResultData, "Result"},
	}

	var row []tgbotapi.InlineKeyboardButton
	for _, t := range tabs {
		if t.mode == services.ViewBargainsData && !rules.UseBargains {
			continue
		}
		label := t.label
		if t.mode == current {
			label = "• " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackData(verbView, string(t.mode))))
	}
	return row
}

func pickerRows(catalog *services.Catalog, rules services.Rules, race, hero *int64, raceField, heroField services.Field) [][]tgbotapi.InlineKeyboardButton {
	var races []tgbotapi.InlineKeyboardButton
	for _, r := range catalog.Races() {
		label := r.Name
		if race != nil && *race == r.ID {
			label = "✅ " + label
		}
		races = append(races, tgbotapi.NewInlineKeyboardButtonData(label,
			callbackData(verbEdit, string(raceField), strconv.FormatInt(r.ID, 10))))
	}
	rows := chunk(races, buttonsPerRow)

	if race == nil {
		return rows
	}

	heroes := catalog.HeroesOfRace(*race)
	if rules.UseForeignHeroes {
		heroes = catalog.Heroes()
	}
	var buttons []tgbotapi.InlineKeyboardButton
	for _, h := range heroes {
		label := h.Name
		if hero != nil && *hero == h.ID {
			label = "✅ " + label
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label,
			callbackData(verbEdit, string(heroField), strconv.FormatInt(h.ID, 10))))
	}
	return append(rows, chunk(buttons, buttonsPerRow)...)
}

func bargainsRows(catalog *services.Catalog, rules services.Rules, game services.GameDraft) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton

	if rules.UseBargainsColor {
		var colors []tgbotapi.InlineKeyboardButton
		for _, c := range catalog.BargainsColors() {
			label := services.BargainsColorLabel(c)
			if game.BargainsColor != nil && *game.BargainsColor == c {
				label = "✅ " + label
			}
			colors = append(colors, tgbotapi.NewInlineKeyboardButtonData(label,
				callbackData(verbEdit, string(services.FieldBargainsColor), string(c))))
		}
		rows = append(rows, colors)
	}

	var steps []tgbotapi.InlineKeyboardButton
	for _, delta := range []int64{-1000, -100, 100, 1000} {
		steps = append(steps, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%+d", delta),
			callbackData(verbEdit, string(services.FieldBargainsAmount), strconv.FormatInt(game.BargainsAmount+delta, 10))))
	}
	return append(rows, steps)
}

func resultRows(seq *services.GameDraftSequence, game services.GameDraft) [][]tgbotapi.InlineKeyboardButton {
	outcomes := []struct {
		outcome services.Outcome
		label   string
	}{
		{services.OutcomeFirstWon, seq.Player.Handle},
		{services.OutcomeSecondWon, seq.Opponent.Handle},
	}
	var row []tgbotapi.InlineKeyboardButton
	for _, o := range outcomes {
		label := "🏆 " + o.label
		if game.Outcome == o.outcome {
			label = "✅ " + o.label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label,
			callbackData(verbEdit, string(services.FieldOutcome), string(o.outcome))))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{row}

	if seq.Rules.GameType == models.GameTypeRMG {
		var victories []tgbotapi.InlineKeyboardButton
		for _, v := range []services.Victory{services.VictoryFinalBattle, services.VictoryNeutrals, services.VictorySurrender} {
			label := victoryLabel(v)
			if game.Victory == v {
				label = "✅ " + label
			}
			victories = append(victories, tgbotapi.NewInlineKeyboardButtonData(label,
				callbackData(verbEdit, string(services.FieldVictory), string(v))))
		}
		rows = append(rows, victories)
	}
	return rows
}

// ReportText is the HTML summary of a committed match.
func ReportText(r *services.Report) string {
	if r == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(upper(r.TournamentName)))
	fmt.Fprintf(&b, "<b>%s %d : %d %s</b>\n",
		html.EscapeString(r.First.Handle), r.Score.First, r.Score.Second, html.EscapeString(r.Second.Handle))

	for _, g := range r.Games {
		fmt.Fprintf(&b, "\n%d. %s (%s) vs %s (%s): %s",
			g.Number,
			html.EscapeString(g.FirstHero), html.EscapeString(g.FirstRace),
			html.EscapeString(g.SecondHero), html.EscapeString(g.SecondRace),
			html.EscapeString(outcomeLabel(g.Outcome, r.First.Handle, r.Second.Handle)),
		)
		if g.Victory != "" {
			fmt.Fprintf(&b, ", %s", victoryLabel(g.Victory))
		}
		if r.Rules.UseBargains {
			if g.BargainsColor != "" {
				fmt.Fprintf(&b, ", bargains %s %d", g.BargainsColor, g.BargainsAmount)
			} else {
				fmt.Fprintf(&b, ", bargains %d", g.BargainsAmount)
			}
		}
	}
	return b.String()
}

func outcomeLabel(o services.Outcome, first, second string) string {
	switch o {
	case services.OutcomeFirstWon:
		return first + " won"
	case services.OutcomeSecondWon:
		return second + " won"
	}
	return "not set"
}

func victoryLabel(v services.Victory) string {
	switch v {
	case services.VictoryNeutrals:
		return "lost to neutrals"
	case services.VictorySurrender:
		return "surrender"
	}
	return "final battle"
}

func chunk(buttons []tgbotapi.InlineKeyboardButton, size int) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > 0 {
		n := min(size, len(buttons))
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}
