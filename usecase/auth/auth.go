package auth

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

const (
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72

	minUsernameLength = 3
	maxUsernameLength = 32
)

// Result is returned by Register and Login.
type Result struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"-"`
	User      domain.PublicUser `json:"user"`
}

type UseCase struct {
	users   repository.UserRepository
	revoked repository.RevocationRepository
	hasher  *PasswordHasher
	tokens  *TokenManager
	events  usecase.EventPublisher
	logger  *zap.Logger
}

// New wires the authentication use case. revoked may be nil, in which case
// tokens stay valid until they expire.
func New(
	users repository.UserRepository,
	revoked repository.RevocationRepository,
	hasher *PasswordHasher,
	tokens *TokenManager,
	events usecase.EventPublisher,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = usecase.NopPublisher{}
	}
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	return &UseCase{
		users:   users,
		revoked: revoked,
		hasher:  hasher,
		tokens:  tokens,
		events:  events,
		logger:  logger,
	}
}

func (uc *UseCase) Register(ctx context.Context, username, email, password string) (*Result, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "username, email and password are required")
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return nil, domain.NewError(domain.ErrCodeInvalid, "username must be between 3 and 32 characters")
	}
	if len(password) > maxPasswordBytes {
		return nil, domain.NewError(domain.ErrCodeInvalid, "password must be at most 72 bytes")
	}

	log := logger.WithRequestID(ctx, uc.logger)

	if err := uc.ensureAvailable(ctx, username, email); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeConflict) {
			log.Info("registration rejected", zap.String("username", username), zap.Error(err))
		}
		return nil, err
	}

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to hash password", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	result, err := uc.issue(user)
	if err != nil {
		return nil, err
	}

	log.Info("user registered", zap.String("user_id", user.ID))
	uc.publish(ctx, usecase.EventUserRegistered, user.Public())
	return result, nil
}

func (uc *UseCase) Login(ctx context.Context, username, password string) (*Result, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "username and password are required")
	}

	log := logger.WithRequestID(ctx, uc.logger)

	user, err := uc.users.GetByUsername(ctx, username)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			log.Info("login failed", zap.String("username", username), zap.String("reason", "unknown user"))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !uc.hasher.Verify(password, user.PasswordHash) {
		log.Info("login failed", zap.String("user_id", user.ID), zap.String("reason", "password mismatch"))
		return nil, domain.ErrInvalidCredentials
	}

	result, err := uc.issue(user)
	if err != nil {
		return nil, err
	}
	log.Info("user logged in", zap.String("user_id", user.ID))
	return result, nil
}

// Authenticate validates the token (signature, expiry, revocation) without touching the user store.
func (uc *UseCase) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	session, err := uc.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	if uc.revoked != nil && session.TokenID != "" {
		revoked, err := uc.revoked.IsRevoked(ctx, session.TokenID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "failed to check token revocation", err)
		}
		if revoked {
			return nil, domain.ErrRevokedToken
		}
	}
	return session, nil
}

// VerifyToken authenticates token and resolves it to the current user record.
func (uc *UseCase) VerifyToken(ctx context.Context, token string) (*domain.PublicUser, error) {
	session, err := uc.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// Logout revokes token until its natural expiry. Tokens that do not validate are ignored.
func (uc *UseCase) Logout(ctx context.Context, token string) error {
	if token == "" || uc.revoked == nil {
		return nil
	}

	session, err := uc.tokens.Parse(token)
	if err != nil || session.TokenID == "" {
		return nil
	}

	if err := uc.revoked.Revoke(ctx, session.TokenID, session.Remaining(time.Now())); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "failed to revoke token", err)
	}
	logger.WithRequestID(ctx, uc.logger).Info("session revoked", zap.String("user_id", session.UserID))
	return nil
}

func (uc *UseCase) TokenTTL() time.Duration {
	return uc.tokens.TTL()
}

func (uc *UseCase) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := uc.users.GetByUsername(ctx, username); err == nil {
		return domain.ErrUsernameTaken
	} else if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return err
	}

	if _, err := uc.users.GetByEmail(ctx, email); err == nil {
		return domain.ErrEmailTaken
	} else if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return err
	}
	return nil
}

func (uc *UseCase) issue(user *domain.User) (*Result, error) {
	token, session, err := uc.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Result{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      user.Public(),
	}, nil
}

func (uc *UseCase) publish(ctx context.Context, subject string, payload interface{}) {
	if err := uc.events.Publish(ctx, subject, payload); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
