package telegram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/studio-billing/internal/billing"
)

type fakeTelegram struct {
	mu    sync.Mutex
	texts []string
	chats []string
	fail  bool
}

func (f *fakeTelegram) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"billing","username":"billing_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.fail {
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		_ = r.ParseForm()
		f.mu.Lock()
		f.texts = append(f.texts, r.PostForm.Get("text"))
		f.chats = append(f.chats, r.PostForm.Get("chat_id"))
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *Notifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint("test-token", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	return New(api, slog.New(slog.NewTextHandler(io.Discard, nil)), 42)
}

func TestPaymentConfirmedSendsReceipt(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake)

	err := n.PaymentConfirmed(context.Background(), billing.Receipt{
		MemberName:      "Ana",
		Amount:          decimal.NewFromInt(30000),
		PaidOn:          time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		PreviousBalance: decimal.NewFromInt(45000),
		NewBalance:      decimal.NewFromInt(15000),
		PlanName:        "2 в неделю",
		ReceiptNumber:   "R-00000001",
	})
	require.NoError(t, err)

	require.Len(t, fake.texts, 1)
	assert.Equal(t, "42", fake.chats[0])
	text := fake.texts[0]
	assert.Contains(t, text, "R-00000001")
	assert.Contains(t, text, "Ana")
	assert.Contains(t, text, "30000.00")
	assert.Contains(t, text, "45000.00 → 15000.00")
	assert.Contains(t, text, "2 в неделю")
}

func TestDebtOverdueSendsNotice(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake)

	require.NoError(t, n.DebtOverdue(context.Background(), billing.OverdueNotice{
		MemberName: "Beto", AmountOverdue: decimal.NewFromInt(20000), MonthsOverdue: 1,
	}))
	require.Len(t, fake.texts, 1)
	assert.Contains(t, fake.texts[0], "Beto")
	assert.Contains(t, fake.texts[0], "20000.00")
}

func TestSendErrorIsReturned(t *testing.T) {
	fake := &fakeTelegram{fail: true}
	n := newTestNotifier(t, fake)

	err := n.DebtOverdue(context.Background(), billing.OverdueNotice{MemberName: "x"})
	assert.Error(t, err)
}

func TestReceiptTextWithoutPlan(t *testing.T) {
	text := receiptText(billing.Receipt{ReceiptNumber: "R-1", Amount: decimal.NewFromInt(1)})
	assert.NotContains(t, text, "План")
}
