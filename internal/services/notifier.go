package services

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
)

// DealNotifier is told about deals that a stage move just closed.
type DealNotifier interface {
	DealClosed(ctx context.Context, deal models.Deal)
}

// Notifier fans a closed deal out to the owner's inbox and the team chat.
// Delivery is best-effort: failures are logged, never returned.
type Notifier struct {
	email    EmailService
	tg       *TelegramService
	profiles repositories.ProfileRepository
	log      *zap.Logger
}

func NewNotifier(email EmailService, tg *TelegramService, profiles repositories.ProfileRepository, log *zap.Logger) *Notifier {
	return &Notifier{email: email, tg: tg, profiles: profiles, log: log}
}

const prefEmailDeals = "email_deals"

func (n *Notifier) DealClosed(ctx context.Context, deal models.Deal) {
	if n.tg.Enabled() {
		if err := n.tg.SendMessage(dealClosedText(deal)); err != nil {
			n.log.Warn("[notify][tg] send failed", zap.String("deal_id", deal.ID), zap.Error(err))
		}
	}

	ownerID := deal.OwnerID
	if ownerID == nil {
		ownerID = deal.CreatedBy
	}
	if ownerID == nil || n.email == nil {
		return
	}
	profile, err := n.profiles.Get(ctx, *ownerID)
	if err != nil {
		n.log.Warn("[notify][email] owner profile", zap.String("owner_id", *ownerID), zap.Error(err))
		return
	}
	if !profile.WantsEmail(prefEmailDeals) {
		return
	}
	if err := n.email.SendDealClosedEmail(profile.Email, deal); err != nil {
		n.log.Warn("[notify][email] send failed", zap.String("deal_id", deal.ID), zap.Error(err))
	}
}

func dealClosedText(d models.Deal) string {
	icon := "🏆"
	if d.Status == models.DealLost {
		icon = "❌"
	}
	return fmt.Sprintf("%s <b>Deal %s</b>\n%s\n%s %s",
		icon, d.Status, html.EscapeString(d.Name), d.Value.StringFixed(2), html.EscapeString(d.Currency))
}
