package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tournament-report-bot/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Reports is the report flow the bot drives.
type Reports interface {
	Start(ctx context.Context, req services.StartRequest) (*services.View, error)
	HandleAction(ctx context.Context, key string, actor services.Actor, action services.Action) (*services.View, error)
	Bounds() services.GameCountBounds
}

// Bot turns Telegram updates into report actions.
type Bot struct {
	api     Sender
	reports Reports
	logger  *zap.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewBot handles at most workers updates at the same time.
func NewBot(api Sender, reports Reports, workers int, logger *zap.Logger) *Bot {
	if workers < 1 {
		workers = 1
	}
	return &Bot{
		api:     api,
		reports: reports,
		logger:  logger.Named("telegram"),
		sem:     make(chan struct{}, workers),
	}
}

// SessionKey identifies the session behind a keyboard message.
func SessionKey(chatID int64, messageID int) string {
	return fmt.Sprintf("tg:%d:%d", chatID, messageID)
}

// Run handles updates until ctx is done or the channel closes, then waits for in-flight updates.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			select {
			case b.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			b.wg.Add(1)
			go func() {
				defer func() {
					<-b.sem
					b.wg.Done()
				}()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("[BOT] update handler panicked", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Command() != "report" || msg.From == nil {
		return
	}

	placeholderMsg := tgbotapi.NewMessage(msg.Chat.ID, "Preparing report…")
	placeholderMsg.ReplyToMessageID = msg.MessageID
	sent, err := b.api.Send(placeholderMsg)
	if err != nil {
		b.logger.Error("[BOT] failed to send report message", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		return
	}

	key := SessionKey(msg.Chat.ID, sent.MessageID)
	view, err := b.reports.Start(ctx, services.StartRequest{
		Key:        key,
		ChatID:     msg.Chat.ID,
		TelegramID: msg.From.ID,
	})
	if err != nil {
		b.logError("start", key, err)
		b.edit(msg.Chat.ID, sent.MessageID, services.UserMessage(err), nil)
		return
	}

	b.logger.Info("[BOT] report started", zap.String("key", key), zap.Int64("telegram_id", msg.From.ID))
	text, markup := Render(view, b.reports.Bounds())
	b.edit(msg.Chat.ID, sent.MessageID, text, markup)
}

// handleCallback acts as the user who pressed the button; the service rejects anyone but the reporter.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.From == nil {
		b.answer(q.ID, "")
		return
	}

	action, ok, err := ParseCallback(q.Data)
	if err != nil {
		b.logger.Warn("[BOT] bad callback data", zap.String("data", q.Data), zap.Error(err))
		b.answer(q.ID, "Unknown button")
		return
	}
	if !ok {
		b.answer(q.ID, "")
		return
	}

	chatID, messageID := q.Message.Chat.ID, q.Message.MessageID
	key := SessionKey(chatID, messageID)

	view, err := b.reports.HandleAction(ctx, key, services.Actor{TelegramID: q.From.ID}, action)
	if err != nil {
		b.logError(string(action.Type), key, err)
		b.answer(q.ID, services.UserMessage(err))
		if view != nil {
			text, markup := Render(view, b.reports.Bounds())
			b.edit(chatID, messageID, text, markup)
		}
		return
	}

	b.answer(q.ID, view.Notice)
	text, markup := Render(view, b.reports.Bounds())
	b.edit(chatID, messageID, text, markup)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug("[BOT] callback answer failed", zap.Error(err))
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	var cfg tgbotapi.EditMessageTextConfig
	if markup != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	cfg.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Send(cfg); err != nil {
		// Telegram rejects edits that change nothing
		if strings.Contains(err.Error(), "message is not modified") {
			return
		}
		b.logger.Warn("[BOT] failed to edit message", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (b *Bot) logError(op, key string, err error) {
	switch {
	case services.IsSoft(err):
		b.logger.Debug("[BOT] rejected action", zap.String("op", op), zap.String("key", key), zap.Error(err))
	case services.IsCollaborator(err):
		b.logger.Warn("[BOT] collaborator failure", zap.String("op", op), zap.String("key", key), zap.Error(err))
	default:
		b.logger.Error("[BOT] internal error", zap.String("op", op), zap.String("key", key), zap.Error(err))
	}
}
