package auth

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/token"
)

type tokenEmailData struct {
	Name      string
	Token     string
	ExpiresIn string
}

func humanizeTTL(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		if days := int(d / (24 * time.Hour)); days > 1 {
			return fmt.Sprintf("%d days", days)
		}
		return "24 hours"
	case d >= time.Hour && d%time.Hour == 0:
		if hours := int(d / time.Hour); hours > 1 {
			return fmt.Sprintf("%d hours", hours)
		}
		return "1 hour"
	default:
		return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
	}
}

func (svc *Service) send(msg *core.EmailMessage) {
	if svc.mail == nil || svc.conf.Auth.DisableSecurityEmails {
		return
	}
	svc.mail.SendMessages(msg)
}

func (svc *Service) sendPasswordReset(acc account.Account, tok token.SecurityToken) {
	svc.send(&core.EmailMessage{
		To:           []mail.Address{{Name: acc.Name, Address: acc.Email}},
		Subject:      "Reset your password",
		TemplateName: "password_reset",
		TemplateData: tokenEmailData{
			Name:      acc.Name,
			Token:     tok.Token,
			ExpiresIn: humanizeTTL(tok.ExpiresAt.Sub(tok.CreatedAt)),
		},
	})
}

func (svc *Service) sendVerification(acc account.Account, tok token.SecurityToken) {
	svc.send(&core.EmailMessage{
		To:           []mail.Address{{Name: acc.Name, Address: acc.Email}},
		Subject:      "Verify your email address",
		TemplateName: "email_verification",
		TemplateData: tokenEmailData{
			Name:      acc.Name,
			Token:     tok.Token,
			ExpiresIn: humanizeTTL(tok.ExpiresAt.Sub(tok.CreatedAt)),
		},
	})
}

func (svc *Service) sendPasswordChanged(acc account.Account) {
	svc.send(&core.EmailMessage{
		To:           []mail.Address{{Name: acc.Name, Address: acc.Email}},
		Subject:      "Your password was changed",
		TemplateName: "password_changed",
		TemplateData: tokenEmailData{Name: acc.Name},
	})
}
