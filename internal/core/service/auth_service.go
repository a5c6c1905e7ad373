package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
	"github.com/expense-tracker/graphql-api/internal/core/ports"
	"github.com/expense-tracker/graphql-api/internal/metrics"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// AuthService implements registration, login and session lifecycle.
type AuthService struct {
	users      ports.UserRepository
	sessions   ports.SessionRepository
	sessionTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(users ports.UserRepository, sessions ports.SessionRepository, sessionTTL time.Duration, log zerolog.Logger) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user and opens a session for it.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, *domain.Session, error) {
	if blank(in.Username) || blank(in.Name) || in.Password == "" || blank(in.Gender) {
		metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "invalid").Inc()
		return nil, nil, domain.NewValidationError("All fields are required")
	}
	gender := domain.Gender(strings.ToLower(strings.TrimSpace(in.Gender)))
	if !gender.Valid() {
		metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "invalid").Inc()
		return nil, nil, domain.NewValidationError("gender must be one of: male female")
	}
	if len(in.Password) > maxPasswordBytes {
		metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "invalid").Inc()
		return nil, nil, domain.NewValidationError("password must be at most 72 bytes")
	}

	_, err := s.users.FindByUsername(ctx, in.Username)
	switch {
	case err == nil:
		metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "conflict").Inc()
		return nil, nil, domain.ErrUserExists
	case !errors.Is(err, domain.ErrUserNotFound):
		metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "error").Inc()
		return nil, nil, fmt.Errorf("register: lookup username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("register: hash password: %w", err)
	}

	picture := strings.TrimSpace(in.ProfilePicture)
	if picture == "" {
		picture = domain.DefaultProfilePicture(in.Username, gender)
	}

	now := s.now()
	created, err := s.users.Create(ctx, &domain.User{
		Username:       in.Username,
		Name:           in.Name,
		PasswordHash:   string(hash),
		ProfilePicture: picture,
		Gender:         gender,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "conflict").Inc()
			return nil, nil, err
		}
		metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "error").Inc()
		return nil, nil, fmt.Errorf("register: %w", err)
	}

	// The account exists from here on; if the session cannot be opened the
	// caller signs in with login instead of registering again.
	sess, err := s.startSession(ctx, created.ID)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "error").Inc()
		s.log.Error().Err(err).
			Str("user_id", created.ID).
			Str("username", created.Username).
			Msg("user registered but session could not be opened")
		return nil, nil, fmt.Errorf("register: user %s created: %w", created.ID, err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("sign_up", "success").Inc()
	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user registered")
	return created, sess, nil
}

// Login verifies credentials and opens a session. Unknown usernames and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *domain.Session, error) {
	if blank(username) || password == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, nil, domain.NewValidationError("All fields are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Keep timing equal to the wrong-password path.
			_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(password))
			metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
			return nil, nil, domain.ErrInvalidCredentials
		}
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, nil, domain.ErrInvalidCredentials
	}

	sess, err := s.startSession(ctx, user.ID)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	s.log.Debug().Str("user_id", user.ID).Msg("user logged in")
	return user, sess, nil
}

// ResolveSession maps a session id back to its user.
func (s *AuthService) ResolveSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	if sessionID == "" {
		return nil, nil, domain.ErrUnauthorized
	}

	sess, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("resolve session: %w", err)
	}

	if sess.Expired(s.now()) {
		// The TTL index removes it eventually; drop it now so it can't be reused.
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to delete expired session")
		}
		return nil, nil, domain.ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("resolve session: %w", err)
	}
	return sess, user, nil
}

// Logout removes the session record. Ending an already ended session is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *AuthService) startSession(ctx context.Context, userID string) (*domain.Session, error) {
	now := s.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

func placeholderHash() []byte {
	placeholderOnce.Do(func() {
		placeholder, _ = bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)
	})
	return placeholder
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
