package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sanacare/go-care/pkg/circuitbreaker"
)

// FCMConfig holds Firebase Cloud Messaging delivery configuration.
type FCMConfig struct {
	// Endpoint is the FCM send URL, e.g.
	// https://fcm.googleapis.com/v1/projects/<project>/messages:send
	Endpoint string
	// BearerToken authorizes send requests.
	BearerToken string
	// Timeout bounds each HTTP send.
	Timeout time.Duration
}

// DefaultFCMConfig returns sending defaults.
func DefaultFCMConfig() FCMConfig {
	return FCMConfig{Timeout: 10 * time.Second}
}

// FCMNotifier delivers messages over the FCM HTTP API, guarded by a circuit
// breaker so a degraded gateway fails fast instead of stalling scans.
type FCMNotifier struct {
	config  FCMConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

// NewFCMNotifier creates an FCM notifier.
func NewFCMNotifier(cfg FCMConfig, logger *zap.Logger) (*FCMNotifier, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("fcm endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFCMConfig().Timeout
	}

	breaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("fcm"), logger)
	if err != nil {
		return nil, err
	}

	return &FCMNotifier{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification map[string]string `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
	} `json:"message"`
}

// Send posts one message to FCM.
func (n *FCMNotifier) Send(ctx context.Context, token string, msg Message) error {
	if token == "" {
		return fmt.Errorf("empty device token")
	}

	var payload fcmMessage
	payload.Message.Token = token
	payload.Message.Notification = map[string]string{
		"title": msg.Title,
		"body":  msg.Body,
	}
	payload.Message.Data = msg.Data

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal fcm message: %w", err)
	}

	_, err = n.breaker.Execute(ctx, func() (any, error) {
		return nil, n.post(ctx, body)
	})
	return err
}

func (n *FCMNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.BearerToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fcm send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
