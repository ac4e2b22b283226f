package email_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()

	lg, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	return lg
}

func TestVerificationEmail(t *testing.T) {
	link := "http://localhost:3000/verify-email?token=abc&action_id=def"

	content, err := email.VerificationEmail(link)
	require.NoError(t, err)

	require.Equal(t, "Verify your email address", content.Subject)
	require.Contains(t, content.Text, link)
	require.Contains(t, content.HTML, link)
}

func TestPasswordResetEmail(t *testing.T) {
	link := "http://localhost:3000/reset-password?token=abc&action_id=def"

	content, err := email.PasswordResetEmail(link)
	require.NoError(t, err)

	require.Equal(t, "Reset your password", content.Subject)
	require.Contains(t, content.Text, link)
	require.Contains(t, content.HTML, link)
}

func TestWelcomeEmailEscapesName(t *testing.T) {
	content, err := email.WelcomeEmail("<script>")
	require.NoError(t, err)

	require.NotContains(t, content.HTML, "<script>")
	require.Contains(t, content.HTML, "&lt;script&gt;")
}

func TestContentTo(t *testing.T) {
	msg := email.Content{Subject: "s", Text: "t", HTML: "<p>h</p>"}.To("user@example.com")

	require.Equal(t, "user@example.com", msg.To)
	require.Equal(t, "s", msg.Subject)
}

func TestLocalSenderReturnsPlaceholderRef(t *testing.T) {
	sender, err := email.New(config.Email{Sender: "local"}, testLogger(t))
	require.NoError(t, err)

	ref, err := sender.Send(context.Background(), email.Message{To: "user@example.com", Subject: "hi"})
	require.NoError(t, err)
	require.Equal(t, "local-message-id-placeholder", ref)
}

func TestNewUnknownSender(t *testing.T) {
	_, err := email.New(config.Email{Sender: "pigeon"}, testLogger(t))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "pigeon"))
}
