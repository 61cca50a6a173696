package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

// AuthService signs users in and out.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
//
// It never touches cookies; the handler turns AuthResult into one.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and a freshly issued session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// errBadCredentials is deliberately the same for unknown email and wrong
// password.
var errBadCredentials = apperror.Unauthorized("invalid email or password")

// LoginWithGitHub upserts the GitHub account (keyed on its stable numeric
// ID) and issues a session.
func (s *AuthService) LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, errors.New("service/auth: GitHub user must not be nil")
	}

	githubID := ghUser.ID
	user := &model.User{
		GitHubID:  &githubID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, storeErr(fmt.Sprintf("saving GitHub user %d", ghUser.ID), err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return s.issue(user)
}

// Register creates an email/password account and signs it in.
func (s *AuthService) Register(ctx context.Context, login, email, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	email = strings.ToLower(strings.TrimSpace(email))
	if login == "" {
		login, _, _ = strings.Cut(email, "@")
	}
	if err := auth.CheckStrength(password); err != nil {
		return nil, apperror.ValidationFailed("password", strings.TrimPrefix(err.Error(), "auth: "))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{Login: login, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "an account with this email already exists",
				Field:   "email",
			}
		}
		return nil, storeErr("creating account", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks an email/password pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, storeErr("loading account", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("failed login", slog.String("userID", user.ID))
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("user authenticated via password", slog.String("userID", user.ID))
	return s.issue(user)
}

// ChangePassword sets a new password. Accounts that already have one must
// confirm it; GitHub-only accounts may set a first password directly.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.PasswordHash != "" {
		if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return apperror.ValidationFailed("currentPassword", "current password is incorrect")
			}
			return fmt.Errorf("service/auth: %w", err)
		}
	}
	if err := auth.CheckStrength(next); err != nil {
		return apperror.ValidationFailed("newPassword", strings.TrimPrefix(err.Error(), "auth: "))
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeErr("updating password", err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// GetUserByID backs GET /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("not signed in")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr("loading user", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
