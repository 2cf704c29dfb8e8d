// Package telegram posts billing events to the studio admin chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/studio-billing/internal/billing"
)

type Notifier struct {
	api       *tgbotapi.BotAPI
	log       *slog.Logger
	adminChat int64
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, adminChat int64) *Notifier {
	return &Notifier{api: api, log: log, adminChat: adminChat}
}

// Connect builds the bot client and checks the token with getMe.
func Connect(token string, log *slog.Logger, adminChat int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram notifier ready", "bot", api.Self.UserName)
	return New(api, log, adminChat), nil
}

func (n *Notifier) send(msg tgbotapi.Chattable) error {
	if _, err := n.api.Send(msg); err != nil {
		n.log.Error("send failed", "chat_id", n.adminChat, "err", err)
		return err
	}
	return nil
}

func (n *Notifier) PaymentConfirmed(_ context.Context, r billing.Receipt) error {
	return n.send(tgbotapi.NewMessage(n.adminChat, receiptText(r)))
}

func (n *Notifier) DebtOverdue(_ context.Context, o billing.OverdueNotice) error {
	return n.send(tgbotapi.NewMessage(n.adminChat, overdueText(o)))
}

// SendDocument uploads a file (e.g. the xlsx billing report) to the admin chat.
func (n *Notifier) SendDocument(name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(n.adminChat, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	return n.send(doc)
}

func receiptText(r billing.Receipt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💳 Оплата %s\n", r.ReceiptNumber)
	fmt.Fprintf(&sb, "Клиент: %s\n", r.MemberName)
	fmt.Fprintf(&sb, "Сумма: %s\n", r.Amount.StringFixed(2))
	fmt.Fprintf(&sb, "Дата: %s\n", r.PaidOn.Format(time.DateOnly))
	fmt.Fprintf(&sb, "Баланс: %s → %s", r.PreviousBalance.StringFixed(2), r.NewBalance.StringFixed(2))
	if r.PlanName != "" {
		fmt.Fprintf(&sb, "\nПлан: %s", r.PlanName)
	}
	return sb.String()
}

func overdueText(o billing.OverdueNotice) string {
	return fmt.Sprintf("⚠️ Просрочка: %s\nДолг: %s\nМесяцев: %d",
		o.MemberName, o.AmountOverdue.StringFixed(2), o.MonthsOverdue)
}
