// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/taptag/utils"
)

// NotificationService sends the user facing messages of the activation journey
type NotificationService interface {
	SendOTP(ctx context.Context, phone, code string, validMinutes int) error
	NotifyActivation(ctx context.Context, tagID int64, shortCode string) error
}

type NotificationServiceImpl struct {
	sms SMSService
}

func NewNotificationService(sms SMSService) NotificationService {
	return &NotificationServiceImpl{sms: sms}
}

// SendOTP texts the plaintext passcode to phone
func (s *NotificationServiceImpl) SendOTP(ctx context.Context, phone, code string, validMinutes int) error {
	if s.sms == nil {
		return fmt.Errorf("SMS provider not configured")
	}
	if phone == "" {
		return fmt.Errorf("recipient phone is empty")
	}
	msg := fmt.Sprintf("TapTag verification code: %s. This code is valid for %d minutes.", code, validMinutes)
	return s.sms.SendSMS(ctx, phone, msg)
}

// NotifyActivation records a completed activation. No message is sent to the owner yet.
func (s *NotificationServiceImpl) NotifyActivation(_ context.Context, tagID int64, shortCode string) error {
	log.Printf("Tag activated: tag_id=%d short_code=%s at=%s", tagID, shortCode, utils.UTCNow().Format("2006-01-02T15:04:05Z"))
	return nil
}
