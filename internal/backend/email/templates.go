package email

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Content is a rendered email body, ready to be addressed.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

func (c Content) To(addr string) Message {
	return Message{To: addr, Subject: c.Subject, Text: c.Text, HTML: c.HTML}
}

func VerificationEmail(link string) (Content, error) {
	html, err := render("verify_email.html", map[string]string{"Link": link})
	if err != nil {
		return Content{}, err
	}

	return Content{
		Subject: "Verify your email address",
		Text:    "Use the following link to verify your email address: " + link,
		HTML:    html,
	}, nil
}

func PasswordResetEmail(link string) (Content, error) {
	html, err := render("reset_password.html", map[string]string{"Link": link})
	if err != nil {
		return Content{}, err
	}

	return Content{
		Subject: "Reset your password",
		Text:    "Use the following link to reset your password: " + link,
		HTML:    html,
	}, nil
}

// NotificationEmail wraps an arbitrary notification title and body in
// the shared layout.
func NotificationEmail(title, body string) (Content, error) {
	html, err := render("notification.html", map[string]string{"Title": title, "Body": body})
	if err != nil {
		return Content{}, err
	}

	return Content{Subject: title, Text: body, HTML: html}, nil
}

func WelcomeEmail(firstName string) (Content, error) {
	html, err := render("welcome.html", map[string]string{"FirstName": firstName})
	if err != nil {
		return Content{}, err
	}

	return Content{
		Subject: "Welcome aboard",
		Text:    fmt.Sprintf("Welcome, %s! Your account was created successfully.", firstName),
		HTML:    html,
	}, nil
}

func render(name string, data interface{}) (string, error) {
	var buf strings.Builder
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render template %s error: %w", name, err)
	}

	return buf.String(), nil
}
