package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/metrics"
	"storefront/internal/model"
)

const (
	kindReceipt = "receipt"
	kindAdmin   = "admin"

	receiptSubject = "Your Order Receipt"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is a composed email; it is never persisted.
type Message struct {
	To      string
	Subject string
	Body    string
}

var templateFuncs = template.FuncMap{
	"money":     FormatMoney,
	"lineTotal": func(it model.OrderItem) string { return FormatMoney(it.Total()) },
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(templateFuncs).Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Thank you for your order!</h2>
  <p>Order ID: <strong>{{.Order.ID}}</strong></p>
  <p>Total: <strong>{{money .Order.TotalCents}}</strong></p>
  <h3>Order Items:</h3>
  <ul>
  {{- range .Order.Items}}
    <li>{{.Name}} × {{.Quantity}} - {{lineTotal .}}</li>
  {{- end}}
  </ul>
  {{- with .Order.ShippingAddress}}
  <h3>Shipping To:</h3>
  <p>
    {{.Line1}}<br/>
    {{if .Line2}}{{.Line2}}<br/>{{end}}
    {{.City}}, {{.State}} {{.PostalCode}}<br/>
    {{.Country}}
  </p>
  {{- end}}
  <p style="margin-top: 30px;">We'll send another email when your items ship.</p>
  <hr/>
  <p style="color: #6b7280; font-size: 12px;">Questions? Reply to this email or contact us at {{.SupportEmail}}</p>
</div>`))

var adminTmpl = template.Must(template.New("admin").Funcs(templateFuncs).Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>New Order Received!</h2>
  <p><strong>Order ID:</strong> {{.Order.ID}}</p>
  <hr/>
  <h3>Customer Information</h3>
  <p><strong>Name:</strong> {{or .Order.CustomerName "No name provided"}}</p>
  <p><strong>Email:</strong> {{or .Order.CustomerEmail "No email provided"}}</p>
  {{- with .Order.ShippingAddress}}
  <p><strong>Shipping Address:</strong></p>
  <p>
    {{.Line1}}<br/>
    {{if .Line2}}{{.Line2}}<br/>{{end}}
    {{.City}}, {{.State}} {{.PostalCode}}<br/>
    {{.Country}}
  </p>
  {{- else}}
  <p><em>No shipping address provided by the payment provider</em></p>
  {{- end}}
  <h3>Order Details</h3>
  <ul style="list-style-type: none; padding: 0;">
  {{- range .Order.Items}}
    <li>{{.Name}} × {{.Quantity}} - {{lineTotal .}}</li>
  {{- end}}
  </ul>
  <p style="font-size: 18px;"><strong>Total: {{money .Order.TotalCents}}</strong></p>
  <hr/>
  <p style="color: #6b7280; font-size: 12px;">Order Date: {{.Date.Format "Jan 2, 2006 15:04 MST"}}</p>
</div>`))

// FormatMoney renders minor units as dollars, e.g. 4500 -> "$45.00".
func FormatMoney(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

func ComposeReceipt(o *model.Order, supportEmail string) (Message, error) {
	var buf bytes.Buffer
	err := receiptTmpl.Execute(&buf, struct {
		Order        *model.Order
		SupportEmail string
	}{o, supportEmail})
	if err != nil {
		return Message{}, fmt.Errorf("render receipt: %w", err)
	}
	return Message{To: o.CustomerEmail, Subject: receiptSubject, Body: buf.String()}, nil
}

func ComposeAdminNotification(o *model.Order, adminEmail string, at time.Time) (Message, error) {
	var buf bytes.Buffer
	err := adminTmpl.Execute(&buf, struct {
		Order *model.Order
		Date  time.Time
	}{o, at})
	if err != nil {
		return Message{}, fmt.Errorf("render admin notification: %w", err)
	}
	return Message{To: adminEmail, Subject: "New Order #" + shortID(o.ID), Body: buf.String()}, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// Dispatcher sends the customer receipt and the operator notification for a
// recorded order. Each send is independent and failures are only logged.
type Dispatcher struct {
	mailer     Mailer
	adminEmail string
	timeout    time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewDispatcher(mailer Mailer, adminEmail string, timeout time.Duration, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		mailer:     mailer,
		adminEmail: adminEmail,
		timeout:    timeout,
		metrics:    m,
		now:        time.Now,
	}
}

func (d *Dispatcher) NotifyOrder(ctx context.Context, o *model.Order) {
	if o.CustomerEmail == "" {
		slog.Warn("no customer email, receipt skipped", "order_id", o.ID)
	} else if msg, err := ComposeReceipt(o, d.adminEmail); err != nil {
		slog.Error("failed to compose receipt", "order_id", o.ID, "error", err)
	} else {
		d.send(ctx, kindReceipt, o.ID, msg)
	}

	msg, err := ComposeAdminNotification(o, d.adminEmail, d.now())
	if err != nil {
		slog.Error("failed to compose admin notification", "order_id", o.ID, "error", err)
		return
	}
	d.send(ctx, kindAdmin, o.ID, msg)
}

func (d *Dispatcher) send(ctx context.Context, kind, orderID string, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.mailer.Send(ctx, msg.To, msg.Subject, msg.Body)
	d.metrics.Notification(kind, err)
	if err != nil {
		slog.Error("failed to send notification", "kind", kind, "to", msg.To, "order_id", orderID, "error", err)
		return
	}
	slog.Info("notification sent", "kind", kind, "to", msg.To, "order_id", orderID)
}
