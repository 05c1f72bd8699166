package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"ragviet-backend/internal/config"
)

// SMTPEmailSender delivers the password-reset OTP mail.
type SMTPEmailSender struct {
	config *config.Config
}

func NewSMTPEmailSender(cfg *config.Config) *SMTPEmailSender {
	return &SMTPEmailSender{config: cfg}
}

type otpEmailData struct {
	OTP        string
	TTLMinutes int
}

// SendOTPEmail sends the reset code to one recipient. The context is
// accepted for interface symmetry; net/smtp has no cancellation hook.
func (s *SMTPEmailSender) SendOTPEmail(ctx context.Context, to, otp string) error {
	if s.config.SMTPHost == "" {
		return fmt.Errorf("SMTP is not configured")
	}

	data := otpEmailData{OTP: otp, TTLMinutes: s.config.OTPTTLMinutes}
	subject := "Mã xác nhận đặt lại mật khẩu"

	htmlBody, err := renderTemplate(otpHTMLTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}
	textBody, err := renderTemplate(otpTextTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	return s.sendEmail([]string{to}, subject, htmlBody, textBody)
}

func renderTemplate(tpl string, data otpEmailData) (string, error) {
	t, err := template.New("email").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *SMTPEmailSender) sendEmail(recipients []string, subject, htmlBody, textBody string) error {
	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)

	message := fmt.Sprintf(`From: %s
To: %s
Subject: %s
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="boundary123"

--boundary123
Content-Type: text/plain; charset=UTF-8

%s

--boundary123
Content-Type: text/html; charset=UTF-8

%s

--boundary123--`,
		s.config.SMTPFrom,
		strings.Join(recipients, ", "),
		subject,
		textBody,
		htmlBody)

	addr := fmt.Sprintf("%s:%s", s.config.SMTPHost, s.config.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.SMTPFrom, recipients, []byte(message))
}

const otpHTMLTemplate = `<html><body>
<h2>Đặt lại mật khẩu</h2>
<p>Xin chào,</p>
<p>Mã xác nhận của bạn là: <strong style="font-size: 20px;">{{.OTP}}</strong></p>
<p>Mã có hiệu lực trong {{.TTLMinutes}} phút. Nếu bạn không yêu cầu đặt lại mật khẩu, vui lòng bỏ qua email này.</p>
</body></html>`

const otpTextTemplate = `Đặt lại mật khẩu

Xin chào,

Mã xác nhận của bạn là: {{.OTP}}

Mã có hiệu lực trong {{.TTLMinutes}} phút. Nếu bạn không yêu cầu đặt lại mật khẩu, vui lòng bỏ qua email này.`
