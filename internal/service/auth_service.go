package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/tanishtirpathi/Playlistr/internal/apperrors"
	"github.com/tanishtirpathi/Playlistr/internal/metrics"
	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/repository"
	"github.com/tanishtirpathi/Playlistr/internal/token"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuthService struct {
	users  UserStore
	tokens *token.Manager
	clock  clockwork.Clock
}

type RegisterUserData struct {
	Name     string
	Email    string
	Password string
}

// Session is returned by register and login.
type Session struct {
	User         *models.UserDoc `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func NewAuthService(users UserStore, tokens *token.Manager, clock clockwork.Clock) *AuthService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthService{users: users, tokens: tokens, clock: clock}
}

func recordAuth(event string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.AuthEventsTotal.WithLabelValues(event, result).Inc()
}

// ================== REGISTER & LOGIN ==================

// Register creates a password user and opens their first session.
func (s *AuthService) Register(ctx context.Context, data RegisterUserData) (sess *Session, err error) {
	defer func() { recordAuth("register", err) }()

	name := strings.TrimSpace(data.Name)
	email := models.NormalizeEmail(data.Email)
	if name == "" || email == "" || data.Password == "" {
		return nil, apperrors.Validation("name, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.Validation("invalid email address")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Internal("failed to look up user", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("User already exists")
	}

	u := &models.UserDoc{
		Name:      name,
		Email:     email,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := u.SetPassword(data.Password); err != nil {
		if errors.Is(err, models.ErrPasswordTooShort) {
			return nil, apperrors.Validation(err.Error())
		}
		return nil, apperrors.Internal("failed to hash password", err)
	}

	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.Conflict("User already exists")
		}
		return nil, apperrors.Internal("failed to create user", err)
	}

	return s.openSession(ctx, u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (sess *Session, err error) {
	defer func() { recordAuth("login", err) }()

	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.Validation("email and password are required")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Internal("failed to look up user", err)
	}
	if u == nil || !u.PasswordMatches(password) {
		return nil, apperrors.Unauthenticated("Invalid credentials")
	}

	return s.openSession(ctx, u)
}

// openSession issues a token pair and stores the refresh token, replacing
// whichever one the user held before.
func (s *AuthService) openSession(ctx context.Context, u *models.UserDoc) (*Session, error) {
	pair, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		return nil, apperrors.Internal("failed to store refresh token", err)
	}
	return &Session{
		User:         u.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (s *AuthService) issuePair(u *models.UserDoc) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(u.ID.Hex(), u.Email)
	if err != nil {
		return nil, apperrors.Internal("failed to issue access token", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(u.ID.Hex())
	if err != nil {
		return nil, apperrors.Internal("failed to issue refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ================== REFRESH & LOGOUT ==================

// Refresh rotates a refresh token. The stored token is swapped only if it
// still equals the presented one, so a token can be redeemed at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer func() { recordAuth("refresh", err) }()

	if refreshToken == "" {
		return nil, apperrors.Unauthenticated("Refresh token is required")
	}

	claims, err := s.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, apperrors.Unauthenticated("Invalid or expired refresh token")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthenticated("Invalid or expired refresh token")
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("failed to look up user", err)
	}
	if u == nil || u.RefreshToken == nil || *u.RefreshToken != refreshToken {
		return nil, apperrors.Unauthenticated("Refresh token is invalid")
	}

	pair, err = s.issuePair(u)
	if err != nil {
		return nil, err
	}

	swapped, err := s.users.SwapRefreshToken(ctx, u.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, apperrors.Internal("failed to rotate refresh token", err)
	}
	if !swapped {
		return nil, apperrors.Unauthenticated("Refresh token is invalid")
	}
	return pair, nil
}

// Logout clears the stored refresh token. It reports false when no user held
// the token, which callers treat as already logged out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (cleared bool, err error) {
	defer func() { recordAuth("logout", err) }()

	if refreshToken == "" {
		return false, apperrors.Validation("Refresh token is required to logout")
	}

	cleared, err = s.users.ClearRefreshToken(ctx, refreshToken)
	if err != nil {
		return false, apperrors.Internal("failed to clear refresh token", err)
	}
	return cleared, nil
}

// ================== SESSION ==================

// Authenticate resolves an access token to the user it was issued for. The
// returned user carries no password hash or refresh token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.UserDoc, error) {
	if accessToken == "" {
		return nil, apperrors.Unauthenticated("Unauthorized - Access token is required")
	}

	claims, err := s.tokens.Verify(accessToken, token.KindAccess)
	if err != nil {
		return nil, apperrors.Unauthenticated("Invalid or expired access token")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthenticated("Invalid or expired access token")
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("failed to look up user", err)
	}
	if u == nil {
		return nil, apperrors.Unauthenticated("Invalid access token - User not found")
	}
	return u.Public(), nil
}
