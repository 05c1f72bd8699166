package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"
	"ragviet-backend/internal/queue"
	"ragviet-backend/models"
	"ragviet-backend/utils"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	otpKeyPrefix     = "otp:"
	otpRatePrefix    = "otp_rate:"
	sessionTokenLen  = 48
)

// AuthService handles registration, login and the OTP password-reset
// flow. Sessions are opaque server-side tokens in Redis; nothing about
// the user is encoded in the token itself.
type AuthService struct {
	config *config.Config
	chat   *ChatService
	rdb    *redis.Client
	queue  *asynq.Client
}

func NewAuthService(cfg *config.Config, chat *ChatService, rdb *redis.Client, queueClient *asynq.Client) *AuthService {
	return &AuthService{
		config: cfg,
		chat:   chat,
		rdb:    rdb,
		queue:  queueClient,
	}
}

// Register creates the account and returns the user-facing message.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return "", fmt.Errorf("Vui lòng điền đầy đủ thông tin")
	}
	if len(password) < 6 {
		return "", fmt.Errorf("Mật khẩu phải có ít nhất 6 ký tự")
	}

	if _, err := s.chat.CreateUser(ctx, username, email, password, s.config.BcryptCost); err != nil {
		return "", err
	}
	return "Đăng ký thành công! Vui lòng đăng nhập.", nil
}

// Login checks credentials and opens a Redis-backed session.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("Vui lòng điền đầy đủ thông tin")
	}

	user, err := s.chat.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !user.IsActive || !utils.CheckPassword(password, user.PasswordHash) {
		return "", nil, fmt.Errorf("Email hoặc mật khẩu không đúng")
	}

	token, err := s.createSession(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) createSession(ctx context.Context, user *models.User) (string, error) {
	token, err := utils.GenerateSecureRandomString(sessionTokenLen)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(models.SessionData{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return "", err
	}

	ttl := time.Duration(s.config.SessionTTLDays) * 24 * time.Hour
	if err := s.rdb.Set(ctx, sessionKeyPrefix+token, data, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// VerifySession resolves a token to its user, or nil when the token is
// unknown or expired.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*models.SessionData, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.SessionData
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Logout invalidates the token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.rdb.Del(ctx, sessionKeyPrefix+token).Err()
}

// ForgotPassword issues a one-time code and queues the delivery email.
// Issuance is rate limited per email address.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", fmt.Errorf("Vui lòng điền đầy đủ thông tin")
	}

	user, err := s.chat.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("Email không tồn tại trong hệ thống")
	}

	rateKey := otpRatePrefix + email
	count, err := s.rdb.Incr(ctx, rateKey).Result()
	if err != nil {
		return "", err
	}
	if count == 1 {
		s.rdb.Expire(ctx, rateKey, time.Hour)
	}
	if count > int64(s.config.OTPMaxPerHour) {
		return "", fmt.Errorf("Bạn đã yêu cầu quá nhiều lần. Vui lòng thử lại sau.")
	}

	otp, err := utils.GenerateOTP(6)
	if err != nil {
		return "", err
	}
	ttl := time.Duration(s.config.OTPTTLMinutes) * time.Minute
	if err := s.rdb.Set(ctx, otpKeyPrefix+email, otp, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store OTP: %w", err)
	}

	task, err := queue.NewOTPEmailTask(email, otp)
	if err != nil {
		return "", err
	}
	if _, err := s.queue.EnqueueContext(ctx, task); err != nil {
		logger.Error("failed to enqueue OTP email", "email", email, "error", err)
		return "", fmt.Errorf("failed to send OTP email")
	}

	return "Mã xác nhận đã được gửi đến email của bạn.", nil
}

// ResetPassword verifies the OTP and replaces the password. The code is
// single use: it is deleted on success.
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || otp == "" || newPassword == "" {
		return "", fmt.Errorf("Vui lòng điền đầy đủ thông tin")
	}
	if len(newPassword) < 6 {
		return "", fmt.Errorf("Mật khẩu phải có ít nhất 6 ký tự")
	}

	stored, err := s.rdb.Get(ctx, otpKeyPrefix+email).Result()
	if err == redis.Nil || (err == nil && stored != otp) {
		return "", fmt.Errorf("Token không hợp lệ hoặc đã hết hạn")
	}
	if err != nil {
		return "", err
	}

	if err := s.chat.UpdatePassword(ctx, email, newPassword, s.config.BcryptCost); err != nil {
		return "", err
	}
	s.rdb.Del(ctx, otpKeyPrefix+email)

	return "Đặt lại mật khẩu thành công! Vui lòng đăng nhập.", nil
}
