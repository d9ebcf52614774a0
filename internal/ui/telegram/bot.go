// Package telegram lets an operator approve drafts and receive campaign
// reports through a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"insta-outreach/internal/core/ports"
)

const maxMessageLen = 4096

// botAPI is the subset of *tgbotapi.BotAPI used here.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramUI implements ports.Approver and ports.Reporter. Pending approvals
// are keyed by the id of the message carrying the buttons, so several
// pipelines can wait for an answer at the same time.
type TelegramUI struct {
	Bot    botAPI
	ChatID int64
	log    *zap.Logger

	mu      sync.Mutex
	pending map[int]chan ports.UserAction
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

var (
	_ ports.Approver = (*TelegramUI)(nil)
	_ ports.Reporter = (*TelegramUI)(nil)
)

func NewTelegramUI(token, chatIDStr string, log *zap.Logger) (*TelegramUI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %w", err)
	}
	return newTelegramUI(bot, chatID, log), nil
}

func newTelegramUI(bot botAPI, chatID int64, log *zap.Logger) *TelegramUI {
	if log == nil {
		log = zap.NewNop()
	}
	ui := &TelegramUI{
		Bot:     bot,
		ChatID:  chatID,
		log:     log.Named("telegram"),
		pending: make(map[int]chan ports.UserAction),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go ui.listen()
	return ui
}

// Close stops the update loop. The library's in-flight long poll is left to
// finish on its own; Close does not wait for it.
func (ui *TelegramUI) Close() {
	ui.once.Do(func() {
		close(ui.stop)
		ui.Bot.StopReceivingUpdates()
	})
	<-ui.done
}

func (ui *TelegramUI) listen() {
	defer close(ui.done)
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := ui.Bot.GetUpdatesChan(u)
	for {
		var update tgbotapi.Update
		select {
		case <-ui.stop:
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			update = upd
		}
		ui.handle(update)
	}
}

// handle routes a button press to the Confirm call waiting on that message.
func (ui *TelegramUI) handle(update tgbotapi.Update) {
	cb := update.CallbackQuery
	if cb == nil || cb.Message == nil {
		return
	}
	action := ports.UserAction(cb.Data)

	ui.mu.Lock()
	ch, ok := ui.pending[cb.Message.MessageID]
	delete(ui.pending, cb.Message.MessageID)
	ui.mu.Unlock()

	if !ok {
		_, _ = ui.Bot.Request(tgbotapi.NewCallback(cb.ID, "This request has expired"))
		return
	}
	ch <- action

	if _, err := ui.Bot.Request(tgbotapi.NewCallback(cb.ID, "Selected: "+string(action))); err != nil {
		ui.log.Warn("callback answer failed", zap.Error(err))
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(ui.ChatID, cb.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := ui.Bot.Send(edit); err != nil {
		ui.log.Warn("removing keyboard failed", zap.Error(err))
	}
}

// Confirm posts the draft with approve, regenerate and skip buttons and waits
// for the operator. A cancelled context counts as skip.
func (ui *TelegramUI) Confirm(ctx context.Context, title, body string) (ports.UserAction, error) {
	msg := tgbotapi.NewMessage(ui.ChatID, fmt.Sprintf("*[%s]*\n\n%s", escapeMarkdown(title), escapeMarkdown(body)))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", string(ports.ActionApprove)),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Regenerate", string(ports.ActionRegenerate)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Skip", string(ports.ActionSkip)),
		),
	)

	sent, err := ui.Bot.Send(msg)
	if err != nil {
		return ports.ActionSkip, fmt.Errorf("send approval request: %w", err)
	}

	respCh := make(chan ports.UserAction, 1)
	ui.mu.Lock()
	ui.pending[sent.MessageID] = respCh
	ui.mu.Unlock()

	select {
	case action := <-respCh:
		return action, nil
	case <-ctx.Done():
		ui.mu.Lock()
		delete(ui.pending, sent.MessageID)
		ui.mu.Unlock()
		return ports.ActionSkip, ctx.Err()
	}
}

// Report sends a plain text report, split across messages when it exceeds
// Telegram's size limit.
func (ui *TelegramUI) Report(ctx context.Context, title, body string) error {
	for _, chunk := range splitMessage(title+"\n\n"+body, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := ui.Bot.Send(tgbotapi.NewMessage(ui.ChatID, chunk)); err != nil {
			return fmt.Errorf("send report: %w", err)
		}
	}
	return nil
}

func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
