// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/utils"
)

// SMSService delivers text messages through the configured gateway
type SMSService interface {
	SendSMS(ctx context.Context, recipient, message string) error
	SendBulk(ctx context.Context, recipients []string, message string) error
}

// SMSServiceImpl talks to a JSON HTTP gateway
type SMSServiceImpl struct {
	config  *config.SMSConfig
	client  *http.Client
	baseURL string
}

// SMSRequest is one message in the gateway batch payload
type SMSRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	RetryCount     int    `json:"retryCount"`
	Type           int    `json:"type"` // always 1
	ValidityPeriod int    `json:"validityPeriod"`
}

// SMSResponse is the per-recipient result returned by the gateway
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewSMSService returns the HTTP gateway client, or a logging mock when the provider is "mock"
func NewSMSService(cfg *config.SMSConfig) SMSService {
	if cfg.ProviderDomain == "" || cfg.ProviderDomain == "mock" {
		return NewMockSMSService()
	}
	return &SMSServiceImpl{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: "https://" + cfg.ProviderDomain,
	}
}

func (s *SMSServiceImpl) SendSMS(ctx context.Context, recipient, message string) error {
	return s.SendBulk(ctx, []string{recipient}, message)
}

// SendBulk sends one message to many recipients in a single gateway call
func (s *SMSServiceImpl) SendBulk(ctx context.Context, recipients []string, message string) error {
	if len(recipients) == 0 {
		return nil
	}
	requests := make([]SMSRequest, 0, len(recipients))
	for _, r := range recipients {
		requests = append(requests, SMSRequest{
			SrcNum:         s.config.SourceNumber,
			Recipient:      strings.TrimPrefix(r, "+"),
			Body:           message,
			RetryCount:     s.config.RetryCount,
			Type:           1,
			ValidityPeriod: s.config.ValidityPeriod,
		})
	}

	requestBody, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v3.0.1/send", bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("SMS gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return fmt.Errorf("failed to decode SMS response: %w", err)
	}
	for _, r := range results {
		if r.StatusCode != http.StatusOK || r.Status != "ACCEPTED" {
			return fmt.Errorf("SMS delivery failed for %s: %s (%d)", utils.MaskPhone(r.Recipient), r.Status, r.StatusCode)
		}
	}
	return nil
}

// MockSMSService records messages instead of sending them
type MockSMSService struct {
	mu           sync.Mutex
	SentMessages []MockSMSMessage
	// FailWith, when set, is returned from every send
	FailWith error
}

type MockSMSMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

func NewMockSMSService() *MockSMSService {
	return &MockSMSService{SentMessages: make([]MockSMSMessage, 0)}
}

func (m *MockSMSService) SendSMS(ctx context.Context, recipient, message string) error {
	return m.SendBulk(ctx, []string{recipient}, message)
}

func (m *MockSMSService) SendBulk(_ context.Context, recipients []string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, r := range recipients {
		log.Printf("Mock SMS to %s: %s", utils.MaskPhone(r), message)
		m.SentMessages = append(m.SentMessages, MockSMSMessage{
			Recipient: r,
			Message:   message,
			SentAt:    utils.UTCNow(),
		})
	}
	return nil
}

// GetSentMessages returns a copy of the recorded messages
func (m *MockSMSService) GetSentMessages() []MockSMSMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockSMSMessage(nil), m.SentMessages...)
}

func (m *MockSMSService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockSMSMessage, 0)
}
