package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"tusome/internal/models"
)

const (
	smtpTimeout = 30 * time.Second
)

type SMTPService struct {
	host     string
	port     int
	username string
	password string
	from     string
	baseURL  string
}

func NewSMTPService(host string, port int, username, password, from, baseURL string) *SMTPService {
	return &SMTPService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		baseURL:  baseURL,
	}
}

// SendWelcome sends the post-registration email with the email verification
// link and trial details.
func (s *SMTPService) SendWelcome(user *models.User, verificationToken string) error {
	subject := "Welcome to Tusome - Verify Your Email"

	trialEnds := "soon"
	if user.TrialEndDate != nil {
		trialEnds = user.TrialEndDate.Format("2 January 2006")
	}

	body := fmt.Sprintf(`Hi %s,

Welcome to Tusome! Your 7-day free trial for %s has started.

Please verify your email by clicking the link below:
%s/auth/verify-email?token=%s

Your trial includes:
- Full access to %s curriculum
- Interactive lessons and quizzes
- Progress tracking
- Mobile-optimized learning

Trial expires: %s

Best regards,
The Tusome Team`, user.FirstName, user.GradeTier, s.baseURL, verificationToken, user.GradeTier, trialEnds)

	return s.send(user.Email, subject, body)
}

func (s *SMTPService) SendPasswordReset(user *models.User, resetToken string) error {
	subject := "Reset Your Tusome Password"
	body := fmt.Sprintf(`Hi %s,

You requested to reset your password for your Tusome account.

Click the link below to reset your password:
%s/auth/reset-password?token=%s

This link will expire in 1 hour.

If you didn't request this reset, please ignore this email.

Best regards,
The Tusome Team`, user.FirstName, s.baseURL, resetToken)

	return s.send(user.Email, subject, body)
}

func (s *SMTPService) send(to, subject, body string) error {
	msg := s.buildMessage(to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	ctx, cancel := context.WithTimeout(context.Background(), smtpTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: s.host}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	} else if s.port != 25 && s.port != 1025 {
		return fmt.Errorf("STARTTLS not available on port %d (required for secure auth)", s.port)
	}

	if s.username != "" && s.password != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("SMTP MAIL command: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT command: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command: %w", err)
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		wc.Close()
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	if err := client.Quit(); err != nil {
		slog.Warn("smtp QUIT command failed", "component", "email", "error", err)
	}

	return nil
}

func (s *SMTPService) buildMessage(to, subject, body string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s",
		s.from, to, subject, body)
}
