package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"insta-outreach/internal/core/ports"
)

type fakeBot struct {
	mu      sync.Mutex
	nextID  int
	sent    []tgbotapi.Chattable
	answers []tgbotapi.CallbackConfig
	updates chan tgbotapi.Update
	sentCh  chan int
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update), sentCh: make(chan int, 10)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.sent = append(b.sent, c)
	if m, ok := c.(tgbotapi.MessageConfig); ok && m.ReplyMarkup != nil {
		b.sentCh <- b.nextID
	}
	return tgbotapi.Message{MessageID: b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		b.answers = append(b.answers, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	close(b.updates)
}

func (b *fakeBot) click(messageID int, data string) {
	b.updates <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: messageID},
	}}
}

func TestConfirm_RoutesAnswersByMessage(t *testing.T) {
	defer goleak.VerifyNone(t)
	bot := newFakeBot()
	ui := newTelegramUI(bot, 42, nil)
	defer ui.Close()

	type answer struct {
		action ports.UserAction
		err    error
	}
	first := make(chan answer, 1)
	second := make(chan answer, 1)
	go func() {
		a, err := ui.Confirm(context.Background(), "DM for @alice", "hi alice")
		first <- answer{a, err}
	}()
	firstID := <-bot.sentCh
	go func() {
		a, err := ui.Confirm(context.Background(), "DM for @bob", "hi bob")
		second <- answer{a, err}
	}()
	secondID := <-bot.sentCh

	bot.click(secondID, string(ports.ActionSkip))
	bot.click(firstID, string(ports.ActionApprove))

	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, ports.ActionApprove, got.action)
	got = <-second
	require.NoError(t, got.err)
	assert.Equal(t, ports.ActionSkip, got.action)
}

func TestConfirm_ContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	bot := newFakeBot()
	ui := newTelegramUI(bot, 42, nil)
	defer ui.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	action, err := ui.Confirm(ctx, "title", "body")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ports.ActionSkip, action)

	// a late click is answered but does not block the loop
	bot.click(<-bot.sentCh, string(ports.ActionApprove))
	ui.mu.Lock()
	defer ui.mu.Unlock()
	assert.Empty(t, ui.pending)
}

func TestReport_SplitsLongMessages(t *testing.T) {
	bot := newFakeBot()
	ui := newTelegramUI(bot, 42, nil)
	defer ui.Close()

	body := strings.Repeat("SUCCESS: @user: hello\n", 400)
	require.NoError(t, ui.Report(context.Background(), "Campaign Eco Bottle", body))

	bot.mu.Lock()
	defer bot.mu.Unlock()
	require.Greater(t, len(bot.sent), 1)
	for _, c := range bot.sent {
		m := c.(tgbotapi.MessageConfig)
		assert.LessOrEqual(t, len([]rune(m.Text)), maxMessageLen)
		assert.Equal(t, int64(42), m.ChatID)
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"aaaa\n", "bbbb"}, splitMessage("aaaa\nbbbb", 6))
	assert.Equal(t, []string{"abcdef", "ghij"}, splitMessage("abcdefghij", 6))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "\\*bold\\* \\_x\\_ \\[a] \\`c\\`", escapeMarkdown("*bold* _x_ [a] `c`"))
}

// pollingBot keeps its update channel open after StopReceivingUpdates, the
// way the real client does while a long poll is still in flight.
type pollingBot struct {
	*fakeBot
}

func (pollingBot) StopReceivingUpdates() {}

func TestClose_DoesNotWaitForLongPoll(t *testing.T) {
	defer goleak.VerifyNone(t)
	ui := newTelegramUI(pollingBot{newFakeBot()}, 42, nil)

	closed := make(chan struct{})
	go func() {
		ui.Close()
		ui.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on the update stream")
	}
}
