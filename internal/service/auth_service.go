package service

import (
	"context"
	"fmt"

	"storefront-gateway/internal/models"
	"storefront-gateway/internal/session"
	"storefront-gateway/internal/upstream"
	"storefront-gateway/internal/util"

	"go.uber.org/zap"
)

// AuthBackend is the slice of the backend API the auth service needs
type AuthBackend interface {
	SendOTP(ctx context.Context, phone string) error
	LoginWithOTP(ctx context.Context, phone, code string) (*upstream.LoginResult, error)
}

// AuthService runs the OTP login flow and owns session lifecycle
type AuthService struct {
	backend  AuthBackend
	sessions *session.Store
	logger   *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(backend AuthBackend, sessions *session.Store) *AuthService {
	return &AuthService{
		backend:  backend,
		sessions: sessions,
		logger:   util.NamedLogger("auth"),
	}
}

// SendOTP validates the phone number locally, then asks the backend to text
// a login code to it
func (as *AuthService) SendOTP(ctx context.Context, phone string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.SendOTP")
	defer span.End()

	if !ValidatePhoneNumber(phone) {
		return ErrInvalidPhone
	}
	return as.backend.SendOTP(ctx, FormatPhoneNumber(phone))
}

// VerifyOTP exchanges a code for a bearer token and opens a gateway session
func (as *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.VerifyOTP")
	defer span.End()

	if !ValidatePhoneNumber(phone) {
		return nil, ErrInvalidPhone
	}

	result, err := as.backend.LoginWithOTP(ctx, FormatPhoneNumber(phone), code)
	if err != nil {
		return nil, err
	}

	sess, err := as.sessions.Create(ctx, result.User.ID, result.Token, result.User.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	as.logger.Info("Session opened", zap.Int64("user_id", sess.UserID))
	return sess, nil
}

// Logout revokes the caller's session
func (as *AuthService) Logout(ctx context.Context, sessionID string) error {
	return as.sessions.Revoke(ctx, sessionID, "logout")
}
