// Package mailer sends the circle's transactional emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers through an SMTP relay. A dialer is opened per message.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer only logs. Used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	slog.Info("email not sent, smtp not configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

var templates = template.Must(template.New("mail").Parse(`
{{define "application_received"}}<p>A new Listening Circle application is waiting for review.</p>
<p><strong>{{.Name}}</strong> &lt;{{.Email}}&gt;{{if .Location}}, {{.Location}}{{end}}</p>
<p><a href="{{.Link}}">Open the admin dashboard</a></p>{{end}}

{{define "approved"}}<p>Hello {{.Name}},</p>
<p>Welcome to the Lowther Listening Circle. Your application has been approved.</p>
<p>Your referral link: <a href="{{.Link}}">{{.Link}}</a></p>
<p>Your referral code: <strong>{{.Code}}</strong></p>{{end}}

{{define "magic_link"}}<p>Hello {{.Name}},</p>
<p><a href="{{.Link}}">Sign in to the Listening Circle</a></p>
<p>This link can be used once and expires in {{.Expiry}}.</p>{{end}}
`))

type templateData struct {
	Name     string
	Email    string
	Location string
	Link     string
	Code     string
	Expiry   string
}

func render(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func ApplicationReceived(to, applicantName, applicantEmail, location, dashboardURL string) (Message, error) {
	html, err := render("application_received", templateData{
		Name: applicantName, Email: applicantEmail, Location: location, Link: dashboardURL,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "New Listening Circle application: " + applicantName, HTML: html}, nil
}

func Approved(to, name, referralLink, code string) (Message, error) {
	html, err := render("approved", templateData{Name: name, Link: referralLink, Code: code})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "You're in: welcome to the Lowther Listening Circle", HTML: html}, nil
}

func MagicLink(to, name, link, expiry string) (Message, error) {
	html, err := render("magic_link", templateData{Name: name, Link: link, Expiry: expiry})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your Listening Circle sign-in link", HTML: html}, nil
}
