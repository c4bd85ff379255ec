// Package templates renders the transactional emails the account lifecycle
// produces: welcome, activation state changes, email verification and
// password reset.
package templates

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

const (
	Welcome        = "welcome"
	AccountStatus  = "account_status"
	VerifyEmail    = "verify_email"
	ForgotPassword = "forgot_password"
)

type def struct {
	subject string
	text    string
	html    string
}

var defs = map[string]def{
	Welcome: {
		subject: "Welcome to {{.Company}}",
		text:    "Hi {{.Name}},\n\nYour {{.Company}} account has been created for {{.Email}}.\n",
		html:    `<p>Hi {{.Name}},</p><p>Your {{.Company}} account has been created for <b>{{.Email}}</b>.</p>`,
	},
	AccountStatus: {
		subject: "Your account was {{.State}}",
		text:    "Hi {{.Name}},\n\nYour account has been {{.State}}.\nIf this was unexpected, contact support: {{.SupportURL}}\n",
		html:    `<p>Hi {{.Name}},</p><p>Your account has been <b>{{.State}}</b>.</p><p>If this was unexpected, contact support: {{.SupportURL}}</p>`,
	},
	VerifyEmail: {
		subject: "Verify your email address",
		text:    "Hi {{.Name}},\n\nPlease verify your email address:\n{{.Link}}\n\nThe link expires in {{.ExpiresIn}}.\n",
		html:    `<p>Hi {{.Name}},</p><p><a href="{{.Link}}">Verify your email address</a></p><p>The link expires in {{.ExpiresIn}}.</p>`,
	},
	ForgotPassword: {
		subject: "Reset your password",
		text:    "Hi {{.Name}},\n\nReset your password:\n{{.Link}}\n\nThe link expires in {{.ExpiresIn}}. If you did not ask for this, ignore this email.\n",
		html:    `<p>Hi {{.Name}},</p><p><a href="{{.Link}}">Reset your password</a></p><p>The link expires in {{.ExpiresIn}}. If you did not ask for this, ignore this email.</p>`,
	},
}

// Render fills the named template with data and returns subject, text and
// html bodies.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	d, ok := defs[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}
	subject, err = renderText(d.subject, data)
	if err != nil {
		return "", "", "", err
	}
	text, err = renderText(d.text, data)
	if err != nil {
		return "", "", "", err
	}
	html, err = renderHTML(d.html, data)
	if err != nil {
		return "", "", "", err
	}
	return subject, text, html, nil
}

func renderText(tpl string, data map[string]any) (string, error) {
	t, err := texttpl.New("t").Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(tpl string, data map[string]any) (string, error) {
	t, err := htmltpl.New("h").Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
