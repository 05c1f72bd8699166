package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ragviet-backend/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	TaskSendOTPEmail = "email:otp"
)

type OTPEmailPayload struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Task creators
func NewOTPEmailTask(email, otp string) (*asynq.Task, error) {
	payload, err := json.Marshal(OTPEmailPayload{Email: email, OTP: otp})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskSendOTPEmail,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(1*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// EmailSender delivers OTP mail; the SMTP implementation lives in the
// services package.
type EmailSender interface {
	SendOTPEmail(ctx context.Context, to, otp string) error
}

// TaskProcessor holds the handlers the worker registers.
type TaskProcessor struct {
	email EmailSender
}

func NewTaskProcessor(email EmailSender) *TaskProcessor {
	return &TaskProcessor{email: email}
}

func (p *TaskProcessor) SendOTPEmail(ctx context.Context, t *asynq.Task) error {
	var payload OTPEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	if err := p.email.SendOTPEmail(ctx, payload.Email, payload.OTP); err != nil {
		return err // will retry
	}
	logger.Info("OTP email sent", "email", payload.Email)
	return nil
}
