package service

import (
	"Zyncrate/config"
	"Zyncrate/model"
	"Zyncrate/utils"
	"log"
	"time"
)

// Notifier mails share links after upload.
type Notifier struct {
	smtp    config.SMTPConfig
	baseURL string
	send    func(cfg config.SMTPConfig, to, fileName, link string, expiresAt time.Time) error
}

// NewNotifier creates a Notifier backed by SMTP.
func NewNotifier(smtp config.SMTPConfig, baseURL string) *Notifier {
	return &Notifier{smtp: smtp, baseURL: baseURL, send: utils.SendShareMail}
}

// Enabled reports whether mail can be sent at all.
func (n *Notifier) Enabled() bool {
	return n != nil && n.smtp.Enabled()
}

// NotifyShare sends the link in the background.
func (n *Notifier) NotifyShare(to string, file *model.File) {
	if !n.Enabled() || to == "" {
		return
	}
	link := utils.ShareLink(n.baseURL, file.Key)
	expiresAt := time.UnixMilli(file.ExpiresAt)
	go func() {
		if err := n.send(n.smtp, to, file.FileName, link, expiresAt); err != nil {
			log.Printf("[notify] share mail for %s failed: %v", file.Key, err)
		}
	}()
}
