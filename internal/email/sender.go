package email

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/ProfessorNova/focusflow/internal/config"
)

// Sender delivers mail over SMTP, optionally with implicit TLS.
type Sender struct {
	cfg config.EmailConfig
}

func NewSender(cfg config.EmailConfig) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(_ context.Context, to, subject, text, html string) error {
	if !s.cfg.Enabled() {
		return fmt.Errorf("email is not configured")
	}

	msg, err := buildMessage(s.cfg.From, to, subject, text, html)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if !s.cfg.Secure {
		return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

// buildMessage writes a multipart/alternative message. A part is skipped
// when its body is empty.
func buildMessage(from, to, subject, text, html string) ([]byte, error) {
	var boundaryBytes [12]byte
	if _, err := rand.Read(boundaryBytes[:]); err != nil {
		return nil, err
	}
	boundary := "ff-" + hex.EncodeToString(boundaryBytes[:])

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	writePart := func(contentType, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(&msg, "--%s\r\n", boundary)
		fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
		msg.WriteString(body)
		msg.WriteString("\r\n")
	}
	writePart("text/plain", text)
	writePart("text/html", html)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return []byte(msg.String()), nil
}

// LogSender writes the plain text body to the process log. It stands in
// for SMTP during development.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, text, _ string) error {
	log.Printf("email: to %s: %s: %s", to, subject, text)
	return nil
}
