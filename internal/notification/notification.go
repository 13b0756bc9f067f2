package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyMirrorOpen  NotificationType = "mirror_open"
	NotifyAgentClose  NotificationType = "agent_close"
	NotifyManualClose NotificationType = "manual_close"
	NotifySkip        NotificationType = "skip"
	NotifyCircuit     NotificationType = "circuit"
	NotifyError       NotificationType = "error"
	NotifyInfo        NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type       NotificationType
	Title      string
	Message    string
	Symbol     string
	Price      float64
	PnLPercent float64
	Timestamp  time.Time
	Extra      map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendMirrorOpen reports a new agent position mirrored onto the account.
func (m *Manager) SendMirrorOpen(symbol, side string, quantity, margin, price float64, leverage int) error {
	emoji := "🟢"
	if side == "SELL" {
		emoji = "🔴"
	}

	return m.Send(&Notification{
		Type:      NotifyMirrorOpen,
		Title:     fmt.Sprintf("%s Mirrored: %s", emoji, symbol),
		Message:   fmt.Sprintf("%s %s @ %.4f\nQty: %.8f | Margin: %.2f | Leverage: %dx", side, symbol, price, quantity, margin, leverage),
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"side":     side,
			"margin":   margin,
			"leverage": leverage,
		},
	})
}

// SendAgentClose reports that the agent closed a position we were mirroring.
func (m *Manager) SendAgentClose(symbol, entryOrderID string, profitPct float64) error {
	emoji := "✅"
	if profitPct < 0 {
		emoji = "❌"
	}

	return m.Send(&Notification{
		Type:       NotifyAgentClose,
		Title:      fmt.Sprintf("%s Agent Closed: %s", emoji, symbol),
		Message:    fmt.Sprintf("Agent dropped %s (entry order %s)\nLast seen P&L: %.2f%%", symbol, entryOrderID, profitPct),
		Symbol:     symbol,
		PnLPercent: profitPct,
		Timestamp:  time.Now(),
	})
}

// SendManualClose reports a manual close detected on the broker account.
func (m *Manager) SendManualClose(symbol, entryOrderID string, refollowArmed bool) error {
	refollow := "re-follow disabled, position stays excluded"
	if refollowArmed {
		refollow = "re-follow armed for future entries"
	}

	return m.Send(&Notification{
		Type:      NotifyManualClose,
		Title:     fmt.Sprintf("✂️ Manual Close: %s", symbol),
		Message:   fmt.Sprintf("Broker shows no %s position while the agent still holds one (entry order %s).\n%s", symbol, entryOrderID, refollow),
		Symbol:    symbol,
		Timestamp: time.Now(),
	})
}

// SendSkip reports a position that was not mirrored and why.
func (m *Manager) SendSkip(symbol, reason string) error {
	return m.Send(&Notification{
		Type:      NotifySkip,
		Title:     fmt.Sprintf("⏭️ Skipped: %s", symbol),
		Message:   reason,
		Symbol:    symbol,
		Timestamp: time.Now(),
	})
}

// SendCircuitTripped reports that order execution is halted.
func (m *Manager) SendCircuitTripped(reason string) error {
	return m.Send(&Notification{
		Type:      NotifyCircuit,
		Title:     "🛑 Circuit Breaker Tripped",
		Message:   reason,
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	// Create Discord embed
	color := 0x00FF00 // Green
	switch {
	case notification.Type == NotifyError || notification.Type == NotifyCircuit:
		color = 0xFF0000 // Red
	case notification.Type == NotifyAgentClose && notification.PnLPercent < 0:
		color = 0xFF0000
	case notification.Type == NotifySkip:
		color = 0xFFA500 // Orange
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	// Add fields if available
	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.4f", notification.Price), "inline": true,
			})
		}
		if notification.PnLPercent != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "P&L", "value": fmt.Sprintf("%.2f%%", notification.PnLPercent), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
