// Package mail は注文まわりの通知メールをResendで送る。
package mail

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"

	"github.com/labstack/gommon/log"
	"github.com/resend/resend-go/v2"
)

var ErrNoRecipient = errors.New("order has no email address")

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendMailer struct {
	emails  emailSender
	from    string
	siteURL string
	log     *log.Logger
}

func NewResendMailer(apiKey, from, siteURL string, logger *log.Logger) *ResendMailer {
	client := resend.NewClient(apiKey)
	return &ResendMailer{emails: client.Emails, from: from, siteURL: siteURL, log: logger}
}

func (m *ResendMailer) SendOrderConfirmation(ctx context.Context, order model.Order, items []model.OrderItem) error {
	subject, body, err := renderOrderConfirmation(m.siteURL, order, items)
	if err != nil {
		return fmt.Errorf("render order confirmation: %w", err)
	}
	return m.send(ctx, order.Email, subject, body)
}

func (m *ResendMailer) SendStatusUpdate(ctx context.Context, order model.Order, previous model.OrderStatus) error {
	subject, body, err := renderStatusUpdate(m.siteURL, order)
	if err != nil {
		return fmt.Errorf("render status update: %w", err)
	}
	m.log.Debugf("status update for %s: %s -> %s", order.OrderNumber, previous, order.Status)
	return m.send(ctx, order.Email, subject, body)
}

func (m *ResendMailer) SendShippingNotification(ctx context.Context, n model.ShippingNotification) error {
	subject, body, err := renderShippingNotification(m.siteURL, n)
	if err != nil {
		return fmt.Errorf("render shipping notification: %w", err)
	}
	return m.send(ctx, n.CustomerEmail, subject, body)
}

func (m *ResendMailer) send(ctx context.Context, to, subject, html string) error {
	if to == "" {
		return ErrNoRecipient
	}
	sent, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	m.log.Infof("email %q sent to %s (id=%s)", subject, to, sent.Id)
	return nil
}
