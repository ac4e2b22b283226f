package authservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
)

func (as *AuthService) handleSendVerificationEmail(ctx context.Context, payload []byte) ([]byte, error) {
	var p tasks.VerificationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload error: %w", err)
	}

	data := map[string]interface{}{"email": p.Email}

	a, token, err := as.issueAction(ctx, p.UserID, models.ActionEmailVerification, data, as.cfg.VerificationTTL)
	if err != nil {
		return nil, err
	}

	link := fmt.Sprintf("%s/verify-email?token=%s&action_id=%s", as.frontend.BaseURL, token, a.ID)

	content, err := email.VerificationEmail(link)
	if err != nil {
		return nil, err
	}

	if _, err := as.sender.Send(ctx, content.To(p.Email)); err != nil {
		return nil, fmt.Errorf("send verification email error: %w", err)
	}

	as.lg.Infof("sent verification email for user %s", p.UserID)

	return nil, nil
}

func (as *AuthService) handleSendPasswordResetEmail(ctx context.Context, payload []byte) ([]byte, error) {
	var p tasks.PasswordResetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload error: %w", err)
	}

	a, token, err := as.issueAction(ctx, p.UserID, models.ActionPasswordReset, nil, as.cfg.ResetTTL)
	if err != nil {
		return nil, err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s&action_id=%s", as.frontend.BaseURL, token, a.ID)

	content, err := email.PasswordResetEmail(link)
	if err != nil {
		return nil, err
	}

	if _, err := as.sender.Send(ctx, content.To(p.Email)); err != nil {
		return nil, fmt.Errorf("send reset email error: %w", err)
	}

	as.lg.Infof("sent password reset email for user %s", p.UserID)

	return nil, nil
}

// issueAction obsoletes earlier pending actions of the same type and
// creates a fresh one. The raw token leaves the process only inside
// the emailed link, the database keeps its hash.
func (as *AuthService) issueAction(ctx context.Context, userID uuid.UUID,
	t models.UserActionType, data map[string]interface{}, ttl time.Duration,
) (models.UserAction, string, error) {
	if err := as.repo.ObsoletePendingActions(ctx, userID, t); err != nil {
		return models.UserAction{}, "", fmt.Errorf("obsolete actions error: %w", err)
	}

	token := uuid.NewString()

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return models.UserAction{}, "", fmt.Errorf("generate from token error: %w", err)
	}

	a := models.UserAction{
		ID:        uuid.New(),
		Type:      t,
		State:     models.ActionStatePending,
		UserID:    userID,
		Data:      data,
		TokenHash: string(hash),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	if err := as.repo.CreateAction(ctx, a); err != nil {
		return models.UserAction{}, "", fmt.Errorf("create action error: %w", err)
	}

	return a, token, nil
}
