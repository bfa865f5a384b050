// civictrack/utils/notify.go
package utils

import (
	"fmt"
	"net/smtp"
	"strings"

	"civictrack/models"
)

// SMTPNotifier sends transactional email over plain SMTP.
type SMTPNotifier struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewSMTPNotifier(host, port, username, password, from string) *SMTPNotifier {
	return &SMTPNotifier{Host: host, Port: port, Username: username, Password: password, From: from}
}

func (n *SMTPNotifier) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + n.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if n.Username != "" {
		auth = smtp.PlainAuth("", n.Username, n.Password, n.Host)
	}
	addr := n.Host + ":" + n.Port
	if err := smtp.SendMail(addr, auth, n.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

func (n *SMTPNotifier) SendStatusUpdate(email, issueTitle string, status models.Status) error {
	subject := fmt.Sprintf("CivicTrack: your issue is now %s", status)
	body := fmt.Sprintf(
		"Hello,\n\nThe status of your reported issue %q has been updated to %q.\n\nThank you for helping improve your community.\n\n- CivicTrack",
		issueTitle, status)
	return n.send(email, subject, body)
}

func (n *SMTPNotifier) SendWelcome(email, firstName string) error {
	subject := "Welcome to CivicTrack"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour CivicTrack account is ready. Report local issues, track their progress, and keep your neighborhood in shape.\n\n- CivicTrack",
		firstName)
	return n.send(email, subject, body)
}

// NoopNotifier drops all notifications. Used when SMTP is not configured.
type NoopNotifier struct{}

func (NoopNotifier) SendStatusUpdate(string, string, models.Status) error { return nil }
func (NoopNotifier) SendWelcome(string, string) error                     { return nil }
