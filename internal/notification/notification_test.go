package notification

import (
	"errors"
	"strings"
	"testing"
)

type recordingNotifier struct {
	enabled bool
	sent    []*Notification
	err     error
}

func (r *recordingNotifier) Send(n *Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) Name() string    { return "recording" }
func (r *recordingNotifier) IsEnabled() bool { return r.enabled }

func TestManagerFansOutToEnabledNotifiers(t *testing.T) {
	m := NewManager()
	on := &recordingNotifier{enabled: true}
	off := &recordingNotifier{enabled: false}
	m.AddNotifier(on)
	m.AddNotifier(off)

	if err := m.SendMirrorOpen("BTCUSDT", "BUY", 0.025, 250, 43000, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(on.sent) != 1 {
		t.Fatalf("enabled notifier got %d notifications, want 1", len(on.sent))
	}
	if len(off.sent) != 0 {
		t.Error("disabled notifier should not receive notifications")
	}

	n := on.sent[0]
	if n.Type != NotifyMirrorOpen {
		t.Errorf("type = %s, want %s", n.Type, NotifyMirrorOpen)
	}
	if n.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s", n.Symbol)
	}
	if !strings.Contains(n.Message, "Leverage: 10x") {
		t.Errorf("message missing leverage: %s", n.Message)
	}
}

func TestManagerReturnsProviderError(t *testing.T) {
	m := NewManager()
	boom := errors.New("webhook down")
	m.AddNotifier(&recordingNotifier{enabled: true, err: boom})

	if err := m.SendError("cycle failed", "signal source unreachable"); !errors.Is(err, boom) {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestManualCloseMessageReflectsRefollow(t *testing.T) {
	m := NewManager()
	rec := &recordingNotifier{enabled: true}
	m.AddNotifier(rec)

	if err := m.SendManualClose("ETHUSDT", "9001", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SendManualClose("ETHUSDT", "9001", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(rec.sent[0].Message, "re-follow armed") {
		t.Errorf("armed message wrong: %s", rec.sent[0].Message)
	}
	if !strings.Contains(rec.sent[1].Message, "stays excluded") {
		t.Errorf("disabled message wrong: %s", rec.sent[1].Message)
	}
}

func TestTelegramNotifierDisabledWithoutCredentials(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{Enabled: true})
	if n.IsEnabled() {
		t.Error("telegram notifier should be disabled without token and chat ID")
	}
	if err := n.Send(&Notification{Title: "x"}); err != nil {
		t.Errorf("disabled notifier should be a no-op, got %v", err)
	}
}

func TestDiscordNotifierDisabledWithoutWebhook(t *testing.T) {
	n := NewDiscordNotifier(DiscordConfig{Enabled: true})
	if n.IsEnabled() {
		t.Error("discord notifier should be disabled without a webhook URL")
	}
}
