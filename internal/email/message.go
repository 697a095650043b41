package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Message is everything needed to address and render a notification
type Message struct {
	Email  string
	Name   string
	Token  string
	Origin string
}

//go:embed templates/*.html
var templateFS embed.FS

const (
	verificationTemplate  = "verification.html"
	resetPasswordTemplate = "reset_password.html"
)

var templates = map[string]*template.Template{
	verificationTemplate:  mustParse(verificationTemplate),
	resetPasswordTemplate: mustParse(resetPasswordTemplate),
}

func mustParse(name string) *template.Template {
	return template.Must(template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

type templateData struct {
	Message
	Link string
}

// VerificationLink points the frontend at its email verification page
func VerificationLink(msg Message) string {
	return link(msg, "/verify-email")
}

// ResetPasswordLink points the frontend at its password reset page
func ResetPasswordLink(msg Message) string {
	return link(msg, "/reset-password")
}

func link(msg Message, path string) string {
	q := url.Values{}
	q.Set("email", msg.Email)
	q.Set("token", msg.Token)
	return strings.TrimRight(msg.Origin, "/") + path + "?" + q.Encode()
}

func render(name string, msg Message, link string) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", templateData{Message: msg, Link: link}); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
