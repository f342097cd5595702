// Package notification pushes trade and error alerts to external sinks.
// Sends are best-effort: a failing provider is logged by the caller and
// never aborts the decision loop.
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
	NotifySignal     NotificationType = "signal"
	NotifyTradeOpen  NotificationType = "trade_open"
	NotifyTradeClose NotificationType = "trade_close"
	NotifyError      NotificationType = "error"
	NotifyInfo       NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Market    string
	Price     float64
	Margin    float64
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans a notification out to all enabled providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager(enabled bool) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   enabled,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers. The last provider
// error is returned but every provider is attempted.
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

// SendSignal announces a decision before any order is placed.
func (m *Manager) SendSignal(market, action, reason string, price float64) error {
	emoji := "\U0001F7E2"
	if action == "SELL" {
		emoji = "\U0001F534"
	}

	return m.Send(&Notification{
		Type:      NotifySignal,
		Title:     fmt.Sprintf("%s Signal: %s", emoji, market),
		Message:   fmt.Sprintf("%s %s @ %.4f\nReason: %s", action, market, price, reason),
		Market:    market,
		Price:     price,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"action": action,
			"reason": reason,
		},
	})
}

// SendTradeOpen announces a confirmed buy.
func (m *Manager) SendTradeOpen(market string, price, filled float64, live bool) error {
	mode := "TEST"
	if live {
		mode = "LIVE"
	}
	return m.Send(&Notification{
		Type:      NotifyTradeOpen,
		Title:     fmt.Sprintf("\U0001F4C8 %s Buy: %s", mode, market),
		Message:   fmt.Sprintf("Price: %.4f\nFilled: %.8f", price, filled),
		Market:    market,
		Price:     price,
		Timestamp: time.Now(),
	})
}

// SendTradeClose announces a confirmed sell with the realized margin.
func (m *Manager) SendTradeClose(market string, entryPrice, exitPrice, margin float64, reason string, live bool) error {
	emoji := "✅"
	if margin < 0 {
		emoji = "❌"
	}
	mode := "TEST"
	if live {
		mode = "LIVE"
	}

	return m.Send(&Notification{
		Type:      NotifyTradeClose,
		Title:     fmt.Sprintf("%s %s Sell: %s", emoji, mode, market),
		Message:   fmt.Sprintf("Entry: %.4f → Exit: %.4f\nMargin: %.2f%%\nReason: %s", entryPrice, exitPrice, margin, reason),
		Market:    market,
		Price:     exitPrice,
		Margin:    margin,
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

	color := 0x00FF00
	if notification.Type == NotifyError {
		color = 0xFF0000
	} else if notification.Type == NotifyTradeClose && notification.Margin < 0 {
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Market != "" {
		fields := []map[string]interface{}{
			{"name": "Market", "value": notification.Market, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.4f", notification.Price), "inline": true,
			})
		}
		if notification.Margin != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Margin", "value": fmt.Sprintf("%.2f%%", notification.Margin), "inline": true,
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
