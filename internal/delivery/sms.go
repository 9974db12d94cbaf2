package delivery

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// TwilioSender sends through the Twilio messages API.
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender builds a Twilio-backed sender.
func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, fromNumber: fromNumber}
}

func (t *TwilioSender) SendSMS(_ context.Context, to, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(message)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// LogSender only logs. The message body goes to debug level so that local setups can read codes.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) SendSMS(_ context.Context, to, message string) error {
	l.logger.Info("sms delivery stubbed", zap.String("to", to))
	l.logger.Debug("sms body", zap.String("to", to), zap.String("body", message))
	return nil
}

// NewSMSSender picks Twilio when a sender number and credentials are configured.
func NewSMSSender(accountSID, authToken, fromNumber string, logger *zap.Logger) SMSSender {
	if fromNumber == "" || accountSID == "" || authToken == "" {
		return NewLogSender(logger)
	}
	return NewTwilioSender(accountSID, authToken, fromNumber)
}
