// Package notifier delivers operational alerts to the shop admin channel.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LowStockAlert describes a product whose stock crossed the reorder point
type LowStockAlert struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Stock       int    `json:"stock"`
	Threshold   int    `json:"threshold"`
}

// Notifier delivers alerts to whoever restocks the shop
type Notifier interface {
	NotifyLowStock(ctx context.Context, alert LowStockAlert) error
}

// telegramNotifier posts alerts to an admin chat through the Telegram Bot API
type telegramNotifier struct {
	botToken    string
	adminChatID int64
	client      *http.Client
	logger      *zap.Logger
}

// NewTelegramNotifier creates a Notifier backed by the Telegram Bot API
func NewTelegramNotifier(botToken string, adminChatID int64, logger *zap.Logger) Notifier {
	return &telegramNotifier{
		botToken:    botToken,
		adminChatID: adminChatID,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

func (n *telegramNotifier) NotifyLowStock(ctx context.Context, alert LowStockAlert) error {
	text := fmt.Sprintf("⚠️ Low stock: %s (id %d) is down to %d units (threshold %d)",
		alert.ProductName, alert.ProductID, alert.Stock, alert.Threshold)

	payload, err := json.Marshal(map[string]interface{}{
		"chat_id": n.adminChatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	n.logger.Info("low stock alert sent",
		zap.Int64("product_id", alert.ProductID),
		zap.Int("stock", alert.Stock))

	return nil
}

// logNotifier writes alerts to the application log, used when no bot token
// is configured
type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a Notifier that only logs alerts
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) NotifyLowStock(_ context.Context, alert LowStockAlert) error {
	n.logger.Warn("low stock",
		zap.Int64("product_id", alert.ProductID),
		zap.String("product_name", alert.ProductName),
		zap.Int("stock", alert.Stock),
		zap.Int("threshold", alert.Threshold))
	return nil
}
