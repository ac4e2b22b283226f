package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
)

const smtpMessageID = "smtp-message-id-placeholder"

// SMTPSender delivers mail over SMTP, either with implicit TLS or an
// optional STARTTLS upgrade, and logs in when credentials are set.
type SMTPSender struct {
	cfg config.Email
}

func NewSMTP(cfg config.Email) SMTPSender {
	return SMTPSender{cfg: cfg}
}

func (s SMTPSender) Send(_ context.Context, msg Message) (string, error) {
	body, contentType, err := buildBody(msg)
	if err != nil {
		return "", err
	}

	var data strings.Builder
	data.WriteString("From: " + s.cfg.From + "\r\n")
	data.WriteString("To: " + msg.To + "\r\n")
	data.WriteString("Subject: " + msg.Subject + "\r\n")
	data.WriteString("MIME-Version: 1.0\r\n")
	data.WriteString("Content-Type: " + contentType + "\r\n")
	data.WriteString("\r\n")
	data.WriteString(body)

	if err := s.deliver(msg.To, data.String()); err != nil {
		return "", err
	}

	return smtpMessageID, nil
}

func (s SMTPSender) deliver(to, data string) error {
	addr := s.cfg.SMTP.Host + ":" + strconv.Itoa(s.cfg.SMTP.Port)

	client, err := s.dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.SMTP.StartTLS && !s.cfg.SMTP.SSL {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.SMTP.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls error: %w", err)
		}
	}

	if s.cfg.SMTP.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTP.Username, s.cfg.SMTP.Password, s.cfg.SMTP.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth error: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail error: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt error: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data error: %w", err)
	}

	if _, err := w.Write([]byte(data)); err != nil {
		return fmt.Errorf("write error: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close data error: %w", err)
	}

	return client.Quit()
}

func (s SMTPSender) dial(addr string) (*smtp.Client, error) {
	if s.cfg.SMTP.SSL {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.SMTP.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return nil, fmt.Errorf("tls dial error: %w", err)
		}

		client, err := smtp.NewClient(conn, s.cfg.SMTP.Host)
		if err != nil {
			return nil, fmt.Errorf("smtp client error: %w", err)
		}

		return client, nil
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial error: %w", err)
	}

	return client, nil
}

// buildBody renders a multipart/alternative body carrying the text and
// HTML variants, or a single part when only text is set.
func buildBody(msg Message) (string, string, error) {
	if msg.HTML == "" {
		return msg.Text, `text/plain; charset="utf-8"`, nil
	}

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", `text/plain; charset="utf-8"`)

	tw, err := mw.CreatePart(textHeader)
	if err != nil {
		return "", "", fmt.Errorf("create text part error: %w", err)
	}

	if _, err := tw.Write([]byte(msg.Text)); err != nil {
		return "", "", fmt.Errorf("write text part error: %w", err)
	}

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", `text/html; charset="utf-8"`)

	hw, err := mw.CreatePart(htmlHeader)
	if err != nil {
		return "", "", fmt.Errorf("create html part error: %w", err)
	}

	if _, err := hw.Write([]byte(msg.HTML)); err != nil {
		return "", "", fmt.Errorf("write html part error: %w", err)
	}

	if err := mw.Close(); err != nil {
		return "", "", fmt.Errorf("close multipart error: %w", err)
	}

	contentType := `multipart/alternative; boundary="` + mw.Boundary() + `"`

	return buf.String(), contentType, nil
}
