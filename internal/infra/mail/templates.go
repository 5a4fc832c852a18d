package mail

import (
	"bytes"
	"html/template"
	"strings"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// セント → "$12.34"
func money(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

func title(s model.OrderStatus) string {
	v := string(s)
	if v == "" {
		return v
	}
	return strings.ToUpper(v[:1]) + v[1:]
}

var funcs = template.FuncMap{
	"money": money,
	"title": title,
}

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html><body style="margin:0;font-family:Helvetica,Arial,sans-serif;background:#f5f3ef;color:#2b2b2b">
<div style="max-width:600px;margin:0 auto;background:#ffffff">
<div style="padding:24px;background:{{.Theme.Accent}};color:#ffffff">
<h1 style="margin:0;font-size:22px">{{.Theme.Heading}}</h1>
</div>
<div style="padding:24px">{{template "body" .}}</div>
<div style="padding:16px 24px;font-size:12px;color:#777">Terra Echo Studios{{if .SiteURL}} &middot; <a href="{{.SiteURL}}">{{.SiteURL}}</a>{{end}}</div>
</div></body></html>{{end}}`

const confirmationHTML = `{{define "body"}}
<p>Hi{{if .Name}} {{.Name}}{{end}},</p>
<p>Thanks for your order <strong>{{.Order.OrderNumber}}</strong>. We will let you know when it ships.</p>
<table style="width:100%;border-collapse:collapse">
{{range .Items}}<tr>
<td style="padding:6px 0">{{.ProductName}}{{if .VariantName}} - {{.VariantName}}{{end}} &times; {{.Quantity}}</td>
<td style="padding:6px 0;text-align:right">{{money .TotalPriceCents}}</td>
</tr>{{end}}
<tr><td style="padding-top:12px">Subtotal</td><td style="padding-top:12px;text-align:right">{{money .Order.SubtotalCents}}</td></tr>
<tr><td>Shipping</td><td style="text-align:right">{{money .Order.ShippingCents}}</td></tr>
<tr><td>Tax</td><td style="text-align:right">{{money .Order.TaxCents}}</td></tr>
{{if .Order.DiscountCents}}<tr><td>Discount</td><td style="text-align:right">-{{money .Order.DiscountCents}}</td></tr>{{end}}
<tr><td><strong>Total</strong></td><td style="text-align:right"><strong>{{money .Order.TotalCents}}</strong></td></tr>
</table>
{{with .Order.ShippingAddress}}{{if .Line1}}
<p style="margin-top:16px">Shipping to:<br>{{.FullName}}<br>{{.Line1}}{{if .Line2}}<br>{{.Line2}}{{end}}<br>{{.City}}, {{.State}} {{.PostalCode}}<br>{{.Country}}</p>
{{end}}{{end}}
{{end}}`

const statusHTML = `{{define "body"}}
<p>Hi{{if .Name}} {{.Name}}{{end}},</p>
<p>Your order <strong>{{.Order.OrderNumber}}</strong> is now <strong>{{title .Order.Status}}</strong>.</p>
{{if .Order.TrackingNumber}}<p>Tracking number: {{.Order.TrackingNumber}}{{if .Order.TrackingURL}} (<a href="{{.Order.TrackingURL}}">track</a>){{end}}</p>{{end}}
{{end}}`

const shippingHTML = `{{define "body"}}
<p>Hi{{if .Notification.CustomerName}} {{.Notification.CustomerName}}{{end}},</p>
{{if .Delivered}}<p>Your order <strong>{{.Notification.OrderNumber}}</strong> has been delivered. We hope you enjoy it.</p>
{{else}}<p>Good news! Your order <strong>{{.Notification.OrderNumber}}</strong> is on its way.</p>{{end}}
{{if .Notification.TrackingNumber}}<p>{{if .Notification.Carrier}}{{.Notification.Carrier}} {{end}}tracking number: <strong>{{.Notification.TrackingNumber}}</strong></p>{{end}}
{{if .Notification.TrackingURL}}<p><a href="{{.Notification.TrackingURL}}" style="display:inline-block;padding:10px 18px;background:{{.Theme.Accent}};color:#ffffff;text-decoration:none">Track your package</a></p>{{end}}
{{end}}`

type theme struct {
	Heading string
	Accent  string
}

var (
	confirmationTmpl = template.Must(template.Must(template.New("confirmation").Funcs(funcs).Parse(layoutHTML)).Parse(confirmationHTML))
	statusTmpl       = template.Must(template.Must(template.New("status").Funcs(funcs).Parse(layoutHTML)).Parse(statusHTML))
	shippingTmpl     = template.Must(template.Must(template.New("shipping").Funcs(funcs).Parse(layoutHTML)).Parse(shippingHTML))
)

// 発送と配達完了で見た目を変える
func shippingTheme(status model.OrderStatus) theme {
	if status == model.OrderStatusDelivered {
		return theme{Heading: "Your order has been delivered", Accent: "#3f7d4e"}
	}
	return theme{Heading: "Your order has shipped", Accent: "#8a5a2b"}
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderOrderConfirmation(siteURL string, order model.Order, items []model.OrderItem) (string, string, error) {
	body, err := render(confirmationTmpl, map[string]any{
		"Theme":   theme{Heading: "Thank you for your order", Accent: "#8a5a2b"},
		"SiteURL": siteURL,
		"Name":    order.ShippingAddress.FirstName,
		"Order":   order,
		"Items":   items,
	})
	if err != nil {
		return "", "", err
	}
	return "Order confirmation " + order.OrderNumber, body, nil
}

func renderStatusUpdate(siteURL string, order model.Order) (string, string, error) {
	body, err := render(statusTmpl, map[string]any{
		"Theme":   theme{Heading: "Order update", Accent: "#5b5b7a"},
		"SiteURL": siteURL,
		"Name":    order.ShippingAddress.FirstName,
		"Order":   order,
	})
	if err != nil {
		return "", "", err
	}
	return "Order " + order.OrderNumber + " is now " + title(order.Status), body, nil
}

func renderShippingNotification(siteURL string, n model.ShippingNotification) (string, string, error) {
	delivered := n.Status == model.OrderStatusDelivered
	body, err := render(shippingTmpl, map[string]any{
		"Theme":        shippingTheme(n.Status),
		"SiteURL":      siteURL,
		"Notification": n,
		"Delivered":    delivered,
	})
	if err != nil {
		return "", "", err
	}
	subject := "Your order " + n.OrderNumber + " has shipped"
	if delivered {
		subject = "Your order " + n.OrderNumber + " has been delivered"
	}
	return subject, body, nil
}
