package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"tournament-report-bot/services"
)

// Callback data is "<verb>|<arg>|<arg>", kept under Telegram's 64 byte limit.
const (
	verbOpponent = "opp"
	verbCount    = "cnt"
	verbPromote  = "go"
	verbEdit     = "set"
	verbView     = "view"
	verbNavigate = "nav"
	verbSubmit   = "done"
	verbNoop     = "noop"
)

func callbackData(parts ...string) string {
	return strings.Join(parts, "|")
}

// ParseCallback turns callback data into an action. ok is false for buttons that do nothing.
func ParseCallback(data string) (action services.Action, ok bool, err error) {
	parts := strings.Split(data, "|")

	switch parts[0] {
	case verbNoop:
		return services.Action{}, false, nil
	case verbOpponent:
		if len(parts) != 2 {
			break
		}
		return services.Action{Type: services.ActionSelectOpponent, Opponent: parts[1]}, true, nil
	case verbCount:
		if len(parts) != 2 {
			break
		}
		n, convErr := strconv.Atoi(parts[1])
		if convErr != nil {
			break
		}
		return services.Action{Type: services.ActionSelectGameCount, GameCount: n}, true, nil
	case verbPromote:
		return services.Action{Type: services.ActionPromote}, true, nil
	case verbEdit:
		if len(parts) != 3 {
			break
		}
		return services.Action{Type: services.ActionEditField, Field: services.Field(parts[1]), Value: parts[2]}, true, nil
	case verbView:
		if len(parts) != 2 {
			break
		}
		return services.Action{Type: services.ActionSetViewMode, View: services.ViewMode(parts[1])}, true, nil
	case verbNavigate:
		if len(parts) != 2 {
			break
		}
		delta, convErr := strconv.Atoi(parts[1])
		if convErr != nil {
			break
		}
		return services.Action{Type: services.ActionNavigate, Delta: delta}, true, nil
	case verbSubmit:
		return services.Action{Type: services.ActionSubmit}, true, nil
	}
	return services.Action{}, false, fmt.Errorf("malformed callback data %q", data)
}
