package mailer

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"
	textTemplate "text/template"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

var (
	_ order.Notifier   = (*Notifications)(nil)
	_ user.ResetMailer = (*Notifications)(nil)
)

var orderPlacedHTML = template.Must(template.New("order").Parse(`<p><strong>Thank you for your order!</strong></p>
<p>Order <strong>{{.Order.ID}}</strong> has been placed and is now {{.Order.Status}}.</p>
<table>
{{- range .Order.Items}}
<tr><td>{{.ProductName}}</td><td>{{.Quantity}} &times; {{.UnitPrice.StringFixed 2}}</td><td>{{.Subtotal.StringFixed 2}}</td></tr>
{{- end}}
</table>
<p>Total: <strong>{{.Order.Total.StringFixed 2}}</strong></p>
<p><a href="{{.Link}}">View your order</a></p>`))

var orderPlacedText = textTemplate.Must(textTemplate.New("order").Parse(`Thank you for your order!

Order {{.Order.ID}} has been placed and is now {{.Order.Status}}.
{{range .Order.Items}}
- {{.ProductName}}: {{.Quantity}} x {{.UnitPrice.StringFixed 2}} = {{.Subtotal.StringFixed 2}}
{{- end}}

Total: {{.Order.Total.StringFixed 2}}
View your order: {{.Link}}
`))

var resetHTML = template.Must(template.New("reset").Parse(`<p>We received a request to reset your password.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires at {{.ExpiresAt}}. If you did not ask for it, ignore this email.</p>`))

var resetText = textTemplate.Must(textTemplate.New("reset").Parse(`We received a request to reset your password.

Choose a new password: {{.Link}}

The link expires at {{.ExpiresAt}}. If you did not ask for it, ignore this email.
`))

// Notifications renders storefront emails and hands them to a Sender.
type Notifications struct {
	sender  Sender
	from    string
	baseURL string
}

// NewNotifications returns Notifications sending from the given address and
// linking to pages under baseURL.
func NewNotifications(sender Sender, from, baseURL string) *Notifications {
	return &Notifications{
		sender:  sender,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// OrderPlaced sends the order confirmation.
func (n *Notifications) OrderPlaced(ctx context.Context, o *order.Order, email string) error {
	data := struct {
		Order *order.Order
		Link  string
	}{
		Order: o,
		Link:  n.baseURL + "/orders/" + url.PathEscape(o.ID),
	}
	m, err := render("Order confirmation", data, orderPlacedHTML, orderPlacedText)
	if err != nil {
		return err
	}
	m.From = n.from
	m.To = email
	return n.sender.Send(ctx, m)
}

// PasswordReset sends the password reset link.
func (n *Notifications) PasswordReset(ctx context.Context, u *user.User, t *user.ResetToken) error {
	data := struct {
		Link      string
		ExpiresAt string
	}{
		Link:      n.baseURL + "/reset-password/" + url.PathEscape(t.Token),
		ExpiresAt: t.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	m, err := render("Reset your password", data, resetHTML, resetText)
	if err != nil {
		return err
	}
	m.From = n.from
	m.To = u.Email
	return n.sender.Send(ctx, m)
}

func render(subject string, data any, html *template.Template, text *textTemplate.Template) (Message, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, data); err != nil {
		return Message{}, errors.Wrapf(err, "render %q html", subject)
	}
	if err := text.Execute(&textBuf, data); err != nil {
		return Message{}, errors.Wrapf(err, "render %q text", subject)
	}
	return Message{Subject: subject, HTML: htmlBuf.String(), Text: textBuf.String()}, nil
}
