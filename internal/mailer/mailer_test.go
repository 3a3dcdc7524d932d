package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	t.Run("application received escapes applicant input", func(t *testing.T) {
		msg, err := ApplicationReceived("admin@example.com", "<b>Eve</b>", "eve@example.com", "Leeds", "https://circle.example.com/admin")
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", msg.To)
		assert.Contains(t, msg.HTML, "&lt;b&gt;Eve&lt;/b&gt;")
		assert.NotContains(t, msg.HTML, "<b>Eve</b>")
		assert.Contains(t, msg.HTML, "Leeds")
	})

	t.Run("approved carries link and code", func(t *testing.T) {
		msg, err := Approved("member@example.com", "Sam", "https://circle.example.com/r/LW-ABC123", "LW-ABC123")
		require.NoError(t, err)
		assert.Contains(t, msg.HTML, "https://circle.example.com/r/LW-ABC123")
		assert.Contains(t, msg.HTML, "LW-ABC123")
	})

	t.Run("magic link", func(t *testing.T) {
		msg, err := MagicLink("member@example.com", "Sam", "https://circle.example.com/auth/verify?token=abc", "24h0m0s")
		require.NoError(t, err)
		assert.Contains(t, msg.HTML, "token=abc")
		assert.Contains(t, msg.HTML, "24h0m0s")
	})
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{}.Send(context.Background(), Message{To: "x@example.com", Subject: "hi"}))
}
