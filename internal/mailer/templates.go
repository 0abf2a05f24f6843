package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

const welcomeTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2>Welcome, {{.Username}}!</h2>
  <p>Thanks for signing up. Your account is ready and you can start learning right away.</p>
  {{if .PathTitle}}<p>We enrolled you in <strong>{{.PathTitle}}</strong>. You can switch paths at any time.</p>{{end}}
  <p><a href="{{.SiteURL}}">Start your first lesson</a></p>
</body>
</html>`

const resetPasswordTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <p>Hello {{.Username}},</p>
  <p>Someone requested a link to change your password. You can do this through the link below.</p>
  <p><a href="{{.ResetURL}}">Change my password</a></p>
  <p>If you didn't request this, please ignore this email. The link expires in {{.ValidFor}}.</p>
</body>
</html>`

// WelcomeData feeds the welcome email.
type WelcomeData struct {
	Username  string
	PathTitle string
	SiteURL   string
}

// ResetPasswordData feeds the reset password email.
type ResetPasswordData struct {
	Username string
	ResetURL string
	ValidFor string
}

// Templates renders the transactional emails.
type Templates struct {
	welcome *template.Template
	reset   *template.Template
}

func NewTemplates() (*Templates, error) {
	welcome, err := template.New("welcome").Parse(welcomeTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse welcome template: %w", err)
	}
	reset, err := template.New("reset").Parse(resetPasswordTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse reset template: %w", err)
	}
	return &Templates{welcome: welcome, reset: reset}, nil
}

func (t *Templates) Welcome(data WelcomeData) (string, string, error) {
	body, err := render(t.welcome, data)
	if err != nil {
		return "", "", err
	}
	return "Welcome aboard!", body, nil
}

func (t *Templates) ResetPassword(data ResetPasswordData) (string, string, error) {
	body, err := render(t.reset, data)
	if err != nil {
		return "", "", err
	}
	return "Reset password instructions", body, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
