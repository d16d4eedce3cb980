package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"crmhub/internal/models"
	"crmhub/internal/repositories/repotest"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, b.err
}

type fakeDialer struct {
	msgs []*gomail.Message
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.msgs = append(d.msgs, m...)
	return nil
}

func seedOwner(t *testing.T, db *repotest.DB, id string, prefs string) {
	t.Helper()
	err := db.Users().CreateWithProfile(context.Background(),
		&models.User{ID: id, Email: id + "@example.com"},
		&models.Profile{ID: id, Email: id + "@example.com", NotificationPreferences: json.RawMessage(prefs)})
	require.NoError(t, err)
}

func closedDeal(owner string) models.Deal {
	return models.Deal{
		ID:       "deal-1",
		Name:     "Big <one>",
		Value:    decimal.NewFromInt(9000),
		Currency: "USD",
		Status:   models.DealWon,
		OwnerID:  &owner,
	}
}

func TestNotifierEmailsOwnerWhoOptedIn(t *testing.T) {
	db := repotest.New()
	seedOwner(t, db, "owner", `{"email_deals":true}`)
	email := &fakeEmail{}
	bot := &fakeBot{}
	tg := &TelegramService{bot: bot, chatID: 42, log: zap.NewNop()}

	NewNotifier(email, tg, db.Profiles(), zap.NewNop()).DealClosed(context.Background(), closedDeal("owner"))

	assert.Equal(t, []string{"owner@example.com:deal-1"}, email.closed)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	assert.Contains(t, bot.sent[0].Text, "Big &lt;one&gt;")
}

func TestNotifierRespectsPreferences(t *testing.T) {
	db := repotest.New()
	seedOwner(t, db, "owner", `{"email_deals":false}`)
	email := &fakeEmail{}

	n := NewNotifier(email, &TelegramService{log: zap.NewNop()}, db.Profiles(), zap.NewNop())
	n.DealClosed(context.Background(), closedDeal("owner"))
	n.DealClosed(context.Background(), closedDeal("ghost"))

	assert.Empty(t, email.closed)
}

func TestNotifierSwallowsFailures(t *testing.T) {
	db := repotest.New()
	seedOwner(t, db, "owner", `{"email_deals":true}`)
	email := &fakeEmail{err: errors.New("smtp down")}
	bot := &fakeBot{err: errors.New("telegram down")}
	tg := &TelegramService{bot: bot, chatID: 1, log: zap.NewNop()}

	assert.NotPanics(t, func() {
		NewNotifier(email, tg, db.Profiles(), zap.NewNop()).DealClosed(context.Background(), closedDeal("owner"))
	})
	assert.Len(t, email.closed, 1)
}

func TestTelegramDisabledWithoutToken(t *testing.T) {
	tg, err := NewTelegramService("", 42, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tg.Enabled())
	assert.NoError(t, tg.SendMessage("hi"))

	var nilTG *TelegramService
	assert.False(t, nilTG.Enabled())
}

func TestEmailServiceSkipsWithoutHost(t *testing.T) {
	s := NewEmailService("", 587, "", "", "crm@example.com", zap.NewNop())
	assert.NoError(t, s.SendWelcomeEmail("a@example.com", "A"))
}

func TestEmailServiceBuildsMessage(t *testing.T) {
	d := &fakeDialer{}
	s := &emailService{dialer: d, from: "crm@example.com", log: zap.NewNop()}

	require.NoError(t, s.SendDealClosedEmail("owner@example.com", closedDeal("owner")))
	require.Len(t, d.msgs, 1)
	assert.Equal(t, []string{"owner@example.com"}, d.msgs[0].GetHeader("To"))
	assert.True(t, strings.HasPrefix(d.msgs[0].GetHeader("Subject")[0], "Deal won"))
}
