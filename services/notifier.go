package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg/email"
)

// Notifier renders and sends the transactional emails.
type Notifier interface {
	OrderConfirmation(ctx context.Context, order *models.Order) error
	AdminOrderNotification(ctx context.Context, order *models.Order) error
	ContactMessage(ctx context.Context, to string, req *models.ContactRequest) error
}

// NotifierConfig names the recipients and links used in messages.
type NotifierConfig struct {
	SiteName   string
	AdminEmail string
	AppURL     string
}

type notifier struct {
	sender email.EmailSender
	cfg    NotifierConfig
}

// NewNotifier, constructor.
func NewNotifier(sender email.EmailSender, cfg NotifierConfig) Notifier {
	if cfg.SiteName == "" {
		cfg.SiteName = "Pillarworks"
	}
	return &notifier{sender: sender, cfg: cfg}
}

var templateFuncs = map[string]any{
	"money": FormatMoney,
}

var (
	confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation").Funcs(templateFuncs).Parse(`<!doctype html>
<html><body style="font-family:sans-serif;color:#0f172a">
<h1>Thank you for your order, {{.Order.Customer.Name}}</h1>
<p>We have received payment for order <strong>{{.Order.OrderNumber}}</strong>.</p>
<table cellpadding="6" style="border-collapse:collapse">
{{- range .Order.Items}}
<tr><td>{{.Title}}</td><td>&times; {{.Quantity}}</td><td align="right">{{money .LineTotal $.Order.Currency}}</td></tr>
{{- end}}
<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{money .Order.Total .Order.Currency}}</strong></td></tr>
</table>
<p>A member of the {{.SiteName}} team will be in touch shortly to get started.</p>
</body></html>`))

	confirmationText = texttemplate.Must(texttemplate.New("confirmation").Funcs(templateFuncs).Parse(`Thank you for your order, {{.Order.Customer.Name}}.

Order {{.Order.OrderNumber}}
{{range .Order.Items}}- {{.Title}} x {{.Quantity}}: {{money .LineTotal $.Order.Currency}}
{{end}}
Total: {{money .Order.Total .Order.Currency}}

A member of the {{.SiteName}} team will be in touch shortly.
`))

	adminOrderHTML = htmltemplate.Must(htmltemplate.New("admin-order").Funcs(templateFuncs).Parse(`<!doctype html>
<html><body style="font-family:sans-serif;color:#0f172a">
<h1>New paid order {{.Order.OrderNumber}}</h1>
<p>{{.Order.Customer.Name}} &lt;{{.Order.Customer.Email}}&gt;{{if .Order.Customer.Company}}, {{.Order.Customer.Company}}{{end}}{{if .Order.Customer.Phone}}, {{.Order.Customer.Phone}}{{end}}</p>
<ul>
{{- range .Order.Items}}
<li>{{.Title}} &times; {{.Quantity}} ({{money .LineTotal $.Order.Currency}})</li>
{{- end}}
</ul>
<p>Total: <strong>{{money .Order.Total .Order.Currency}}</strong></p>
{{- if .Order.Notes}}<p>Notes: {{.Order.Notes}}</p>{{end}}
{{- if .AdminURL}}<p><a href="{{.AdminURL}}">Open in dashboard</a></p>{{end}}
</body></html>`))

	adminOrderText = texttemplate.Must(texttemplate.New("admin-order").Funcs(templateFuncs).Parse(`New paid order {{.Order.OrderNumber}}

Customer: {{.Order.Customer.Name}} <{{.Order.Customer.Email}}>
{{range .Order.Items}}- {{.Title}} x {{.Quantity}}: {{money .LineTotal $.Order.Currency}}
{{end}}
Total: {{money .Order.Total .Order.Currency}}
{{if .AdminURL}}
{{.AdminURL}}
{{end}}`))

	contactHTML = htmltemplate.Must(htmltemplate.New("contact").Parse(`<!doctype html>
<html><body style="font-family:sans-serif;color:#0f172a">
<h1>{{if .Req.Subject}}{{.Req.Subject}}{{else}}New enquiry{{end}}</h1>
<p>From {{.Req.Name}} &lt;{{.Req.Email}}&gt;{{if .Req.Phone}}, {{.Req.Phone}}{{end}}</p>
<p style="white-space:pre-wrap">{{.Req.Message}}</p>
</body></html>`))

	contactText = texttemplate.Must(texttemplate.New("contact").Parse(`From: {{.Req.Name}} <{{.Req.Email}}>{{if .Req.Phone}} ({{.Req.Phone}}){{end}}

{{.Req.Message}}
`))
)

type orderMail struct {
	Order    *models.Order
	SiteName string
	AdminURL string
}

func (n *notifier) OrderConfirmation(ctx context.Context, order *models.Order) error {
	data := orderMail{Order: order, SiteName: n.cfg.SiteName}
	msg, err := render(data, confirmationHTML, confirmationText)
	if err != nil {
		return err
	}
	msg.To = []string{order.Customer.Email}
	msg.Subject = fmt.Sprintf("Your %s order %s", n.cfg.SiteName, order.OrderNumber)
	return n.sender.Send(ctx, msg)
}

func (n *notifier) AdminOrderNotification(ctx context.Context, order *models.Order) error {
	if n.cfg.AdminEmail == "" {
		return nil
	}
	data := orderMail{Order: order, SiteName: n.cfg.SiteName}
	if n.cfg.AppURL != "" {
		data.AdminURL = n.cfg.AppURL + "/admin/orders/" + order.ID
	}
	msg, err := render(data, adminOrderHTML, adminOrderText)
	if err != nil {
		return err
	}
	msg.To = []string{n.cfg.AdminEmail}
	msg.ReplyTo = order.Customer.Email
	msg.Subject = fmt.Sprintf("New order %s (%s)", order.OrderNumber, FormatMoney(order.Total, order.Currency))
	return n.sender.Send(ctx, msg)
}

func (n *notifier) ContactMessage(ctx context.Context, to string, req *models.ContactRequest) error {
	if to == "" {
		to = n.cfg.AdminEmail
	}
	if to == "" {
		return fmt.Errorf("no recipient configured for contact messages")
	}
	msg, err := render(struct{ Req *models.ContactRequest }{req}, contactHTML, contactText)
	if err != nil {
		return err
	}
	msg.To = []string{to}
	msg.ReplyTo = req.Email
	msg.Subject = "Website enquiry"
	if req.Subject != "" {
		msg.Subject += ": " + req.Subject
	}
	return n.sender.Send(ctx, msg)
}

func render(data any, html *htmltemplate.Template, text *texttemplate.Template) (email.Message, error) {
	var h, t bytes.Buffer
	if err := html.Execute(&h, data); err != nil {
		return email.Message{}, fmt.Errorf("failed to render %s email: %w", html.Name(), err)
	}
	if err := text.Execute(&t, data); err != nil {
		return email.Message{}, fmt.Errorf("failed to render %s email: %w", text.Name(), err)
	}
	return email.Message{HTML: h.String(), Text: t.String()}, nil
}

var currencySymbols = map[string]string{"gbp": "£", "usd": "$", "eur": "€"}

// FormatMoney renders minor units, e.g. 49500 gbp → "£495.00".
func FormatMoney(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	major := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	if sym, ok := currencySymbols[strings.ToLower(currency)]; ok {
		return sign + sym + major
	}
	return sign + major + " " + strings.ToUpper(currency)
}
