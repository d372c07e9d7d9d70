// Package mailer provides the outbound mail implementations used by the
// auth engine.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"
)

// SMTP sends mail through a plain SMTP relay.
type SMTP struct {
	addr string
	from string
}

// NewSMTP builds an SMTP mailer targeting addr (host:port).
func NewSMTP(addr, from string) *SMTP {
	return &SMTP{addr: addr, from: from}
}

func (m *SMTP) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg))
}

func (m *SMTP) SendTwoFactorCode(_ context.Context, email, code string) error {
	return m.send(email, "Your verification code",
		fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code))
}

func (m *SMTP) SendSecurityAlert(_ context.Context, email, alertType, detail string) error {
	return m.send(email, "Security alert on your account",
		fmt.Sprintf("%s\n\nAlert type: %s\nIf this was not you, change your password immediately.", detail, alertType))
}

func (m *SMTP) SendVerificationLink(_ context.Context, email, token string) error {
	return m.send(email, "Verify your email address",
		fmt.Sprintf("Use this token to verify your email address: %s", token))
}

// Log writes mail to the logger instead of sending it. For development.
type Log struct {
	Logger *logrus.Logger
}

func (m *Log) SendTwoFactorCode(_ context.Context, email, code string) error {
	m.Logger.WithFields(logrus.Fields{"to": email, "code": code}).Info("two-factor code")
	return nil
}

func (m *Log) SendSecurityAlert(_ context.Context, email, alertType, detail string) error {
	m.Logger.WithFields(logrus.Fields{"to": email, "alert": alertType, "detail": detail}).Info("security alert")
	return nil
}

func (m *Log) SendVerificationLink(_ context.Context, email, token string) error {
	m.Logger.WithFields(logrus.Fields{"to": email, "token": token}).Info("verification link")
	return nil
}
