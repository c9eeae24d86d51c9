package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tournament-report-bot/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier posts finished reports to the tournament's results chat.
type Notifier struct {
	api    Sender
	logger *zap.Logger
}

func NewNotifier(api Sender, logger *zap.Logger) *Notifier {
	return &Notifier{api: api, logger: logger.Named("notifier")}
}

// Publish sends the report. Tournaments without a results chat are skipped.
// The link is only known for supergroups and channels.
func (n *Notifier) Publish(ctx context.Context, target services.ReportTarget, report services.Report) (string, error) {
	if target.ChatID == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg := tgbotapi.NewMessage(target.ChatID, ReportText(&report))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := n.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("failed to post report to chat %d: %w", target.ChatID, err)
	}

	n.logger.Info("[REPORT] report posted", zap.String("match_id", report.MatchID), zap.Int64("chat_id", target.ChatID))
	return messageLink(target.ChatID, sent.MessageID), nil
}

// messageLink builds a t.me link for chats with the -100 prefix.
func messageLink(chatID int64, messageID int) string {
	raw := strconv.FormatInt(chatID, 10)
	if !strings.HasPrefix(raw, "-100") {
		return ""
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", strings.TrimPrefix(raw, "-100"), messageID)
}
