package utils

import (
	"Zyncrate/config"
	"crypto/tls"
	"errors"
	"html"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
)

var ErrSMTPDisabled = errors.New("smtp config missing")

// BuildShareMail renders the share-link notification.
func BuildShareMail(from, to, fileName, link string, expiresAt time.Time) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{to}
	e.Subject = "A file was shared with you"
	e.HTML = []byte(`
		<h2>` + html.EscapeString(fileName) + `</h2>
		<p>Someone shared a file with you. Download it here:</p>
		<a href="` + html.EscapeString(link) + `">` + html.EscapeString(link) + `</a>
		<p>The link expires at ` + expiresAt.UTC().Format(time.RFC1123) + `.</p>
	`)
	return e
}

// SendShareMail mails a download link.
func SendShareMail(cfg config.SMTPConfig, to, fileName, link string, expiresAt time.Time) error {
	if !cfg.Enabled() {
		return ErrSMTPDisabled
	}
	e := BuildShareMail(cfg.From, to, fileName, link, expiresAt)

	addr := cfg.Host + ":" + cfg.Port
	auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	if cfg.TLS || cfg.Port == "465" {
		return e.SendWithTLS(addr, auth, tlsConfig)
	}
	if cfg.StartTLS {
		return e.SendWithStartTLS(addr, auth, tlsConfig)
	}
	return e.Send(addr, auth)
}
