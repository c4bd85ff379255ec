package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWelcome(t *testing.T) {
	subject, text, html, err := Render(Welcome, map[string]any{
		"Name":    "alice",
		"Email":   "alice@example.com",
		"Company": "GeoControl",
	})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to GeoControl", subject)
	assert.Contains(t, text, "alice@example.com")
	assert.Contains(t, html, "<b>alice@example.com</b>")
}

func TestRenderAccountStatus(t *testing.T) {
	subject, text, _, err := Render(AccountStatus, map[string]any{
		"Name":       "alice",
		"State":      "deactivated",
		"SupportURL": "https://example.com/support",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your account was deactivated", subject)
	assert.Contains(t, text, "deactivated")
}

func TestRenderEscapesHTML(t *testing.T) {
	_, _, html, err := Render(VerifyEmail, map[string]any{
		"Name":      "<script>alert(1)</script>",
		"Link":      "https://example.com/verify?token=abc",
		"ExpiresIn": "24h",
	})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, _, err := Render("no_such_template", nil)
	assert.Error(t, err)
}
