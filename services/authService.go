package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store"
	authUtils "civicsync/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errInvalidCredentials = apperr.E(apperr.Unauthenticated, "Invalid credentials")

type AuthService struct {
	users   store.UserStore
	tokens  *authUtils.TokenIssuer
	revoked store.RevocationStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewAuthService(users store.UserStore, tokens *authUtils.TokenIssuer, revoked store.RevocationStore, opts ...Option) (*AuthService, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if revoked == nil {
		return nil, fmt.Errorf("revocation store is required")
	}
	o := applyOptions(opts)
	return &AuthService{users: users, tokens: tokens, revoked: revoked, logger: o.logger, now: o.now}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.AuthResult, error) {
	now := s.now()
	user := &models.User{
		Name:      strings.TrimSpace(name),
		Email:     normalizeEmail(email),
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Name == "" {
		return nil, apperr.Validationf("Name is required")
	}

	if err := user.HashPassword(); err != nil {
		s.logger.Error("Error hashing password", "error", err)
		return nil, apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperr.Validationf("User with this email already exists")
		}
		s.logger.Error("Error inserting user", "error", err)
		return nil, apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.Hex())
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}
	if !user.ComparePassword(password) {
		return nil, errInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*models.AuthResult, error) {
	token, err := s.tokens.GenerateToken(user.ID.Hex())
	if err != nil {
		s.logger.Error("Error generating token", "error", err)
		return nil, apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}
	return &models.AuthResult{Token: token, User: user.Principal()}, nil
}

// Authenticate verifies a bearer token and checks it has not been revoked.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*authUtils.Claims, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "Invalid authorization token", err)
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}
	if revoked {
		return nil, apperr.E(apperr.Unauthenticated, "Session has been logged out")
	}
	return claims, nil
}

func (s *AuthService) Profile(ctx context.Context, userID primitive.ObjectID) (*models.Principal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.E(apperr.Unauthenticated, "User not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}
	p := user.Principal()
	return &p, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *authUtils.Claims) error {
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.revoked.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}
	return nil
}
