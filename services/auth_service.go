// Package services holds the business logic. Services sit between the HTTP
// handlers and the repositories: they never see an http.Request and never run
// SQL themselves.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/crypto"
	"github.com/pillarworks/storefront/repository"
)

const tokenIssuer = "storefront"

// bcryptCost is a variable so tests can lower it.
var bcryptCost = 12

// AuthService authenticates dashboard users and rotates their refresh tokens.
type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error)
	// Refresh redeems a refresh token and issues a new pair in the same family.
	// Presenting an already redeemed token revokes the whole family.
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	// Logout revokes the session's family. It is idempotent: unknown or
	// already revoked sessions are not an error.
	Logout(ctx context.Context, refreshToken string, claims *models.TokenClaims) error
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
	// SessionClaims checks the signature but not the expiry, so an idle
	// browser can still sign out its own session family.
	SessionClaims(tokenString string) (*models.TokenClaims, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
	// ChangePassword signs the user out everywhere and returns a fresh session.
	ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest) (*AuthResult, error)
	// EnsureAdmin creates the bootstrap admin when it does not exist yet.
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
	PurgeStaleTokens(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuthResult is a freshly issued token pair. The refresh token only ever
// travels in its cookie.
type AuthResult struct {
	AccessToken      string      `json:"access_token"`
	AccessExpiresAt  time.Time   `json:"access_expires_at"`
	RefreshToken     string      `json:"-"`
	RefreshExpiresAt time.Time   `json:"-"`
	User             models.User `json:"user"`
}

// AuthConfig carries secrets and lifetimes. Now defaults to time.Now.
type AuthConfig struct {
	JWTSecret     string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

type authService struct {
	db        *sql.DB
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository

	jwtSecret     []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time

	dummyOnce sync.Once
	dummyHash []byte

	log *zap.Logger
}

// NewAuthService, constructor.
func NewAuthService(
	db *sql.DB,
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	cfg AuthConfig,
) AuthService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &authService{
		db:            db,
		userRepo:      userRepo,
		tokenRepo:     tokenRepo,
		jwtSecret:     []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           now,
		log:           zap.L().Named("auth"),
	}
}

var (
	errInvalidCredentials = fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized)
	errRefreshInvalid     = pkg.WithCode("refresh_invalid", fmt.Errorf("%w: invalid refresh token", pkg.ErrUnauthorized))
	errRefreshExpired     = pkg.WithCode("refresh_expired", fmt.Errorf("%w: refresh token expired", pkg.ErrUnauthorized))
	errRefreshRevoked     = pkg.WithCode("refresh_revoked", fmt.Errorf("%w: session has been revoked", pkg.ErrUnauthorized))
	errRefreshReuse       = pkg.WithCode("refresh_reuse", fmt.Errorf("%w: refresh token reuse detected, session revoked", pkg.ErrUnauthorized))

	errRedeemRace = errors.New("refresh token already redeemed")
)

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Spend the same bcrypt time as a real comparison.
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now

	return s.issue(ctx, s.tokenRepo, user, uuid.NewString())
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, errRefreshInvalid
	}

	tok, err := s.tokenRepo.GetByHash(ctx, crypto.HashToken(s.refreshSecret, refreshToken))
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, errRefreshInvalid
		}
		return nil, err
	}

	switch tok.Status {
	case models.RefreshRedeemed:
		return nil, s.revokeOnReuse(ctx, tok)
	case models.RefreshRevoked:
		return nil, errRefreshRevoked
	case models.RefreshExpired:
		return nil, errRefreshExpired
	}

	now := s.now().UTC()
	if tok.Expired(now) {
		if err := s.tokenRepo.MarkExpired(ctx, tok.ID); err != nil {
			s.log.Warn("failed to mark refresh token expired", zap.String("token_id", tok.ID), zap.Error(err))
		}
		return nil, errRefreshExpired
	}

	var result *AuthResult
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txTokens := repository.NewSQLiteRefreshTokenRepo(tx)
		txUsers := repository.NewSQLiteUserRepo(tx)

		if err := txTokens.Redeem(ctx, tok.ID, now); err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return errRedeemRace
			}
			return err
		}

		user, err := txUsers.GetByID(ctx, tok.UserID)
		if err != nil {
			return err
		}

		result, err = s.issue(ctx, txTokens, user, tok.FamilyID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, errRedeemRace):
			// A concurrent request redeemed it first; that is indistinguishable
			// from a replay.
			return nil, s.revokeOnReuse(ctx, tok)
		case errors.Is(err, pkg.ErrNotFound):
			return nil, errRefreshInvalid
		}
		return nil, err
	}
	return result, nil
}

func (s *authService) revokeOnReuse(ctx context.Context, tok *models.RefreshToken) error {
	n, err := s.tokenRepo.RevokeFamily(ctx, tok.FamilyID)
	if err != nil {
		return fmt.Errorf("failed to revoke token family: %w", err)
	}
	s.log.Warn("refresh token reuse detected, family revoked",
		zap.String("user_id", tok.UserID),
		zap.String("family_id", tok.FamilyID),
		zap.Int64("revoked", n))
	return errRefreshReuse
}

func (s *authService) Logout(ctx context.Context, refreshToken string, claims *models.TokenClaims) error {
	familyID := ""
	if claims != nil {
		familyID = claims.FamilyID
	}

	if familyID == "" && refreshToken != "" {
		tok, err := s.tokenRepo.GetByHash(ctx, crypto.HashToken(s.refreshSecret, refreshToken))
		if err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return nil
			}
			return err
		}
		familyID = tok.FamilyID
	}

	if familyID == "" {
		return nil
	}
	if _, err := s.tokenRepo.RevokeFamily(ctx, familyID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkg.WithCode("token_expired", fmt.Errorf("%w: token expired", pkg.ErrUnauthorized))
		}
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	return claims, nil
}

func (s *authService) SessionClaims(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.Issuer != tokenIssuer || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}
	return claims, nil
}

func (s *authService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// The account was deleted while the access token was still valid.
			return nil, fmt.Errorf("%w: user no longer exists", pkg.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return nil, fmt.Errorf("%w: current password is incorrect", pkg.ErrUnauthorized)
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return nil, err
	}

	var result *AuthResult
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txUsers := repository.NewSQLiteUserRepo(tx)
		txTokens := repository.NewSQLiteRefreshTokenRepo(tx)

		if err := txUsers.UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		if _, err := txTokens.RevokeAllForUser(ctx, userID); err != nil {
			return err
		}

		result, err = s.issue(ctx, txTokens, user, uuid.NewString())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("password changed, other sessions revoked", zap.String("user_id", userID))
	return result, nil
}

func (s *authService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	req := &models.CreateUserRequest{Email: email, Name: "Administrator", Password: password, Role: models.RoleAdmin}
	if err := req.Validate(); err != nil {
		return false, fmt.Errorf("invalid ADMIN_EMAIL/ADMIN_PASSWORD: %w", err)
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return false, nil
	} else if !errors.Is(err, pkg.ErrNotFound) {
		return false, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return false, err
	}
	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Permissions:  models.PermAll,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, pkg.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}

	s.log.Info("bootstrap admin created", zap.String("email", user.Email))
	return true, nil
}

func (s *authService) PurgeStaleTokens(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.tokenRepo.DeleteStale(ctx, s.now().UTC().Add(-olderThan))
}

// ─── Private Helpers ───

// issue stores a new refresh token in familyID and signs the matching access
// token. tokens is transaction bound when called from Refresh.
func (s *authService) issue(ctx context.Context, tokens repository.RefreshTokenRepository, user *models.User, familyID string) (*AuthResult, error) {
	now := s.now().UTC()

	raw, err := crypto.RandomToken(32)
	if err != nil {
		return nil, err
	}

	refresh := &models.RefreshToken{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		UserID:    user.ID,
		TokenHash: crypto.HashToken(s.refreshSecret, raw),
		Status:    models.RefreshIssued,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := tokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	accessExp := now.Add(s.accessTTL)
	claims := &models.TokenClaims{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: user.EffectivePermissions(),
		FamilyID:    familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	out := *user
	out.PasswordHash = ""
	return &AuthResult{
		AccessToken:      signed,
		AccessExpiresAt:  accessExp,
		RefreshToken:     raw,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             out,
	}, nil
}

func (s *authService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-timing-equaliser"), bcryptCost)
	})
	return s.dummyHash
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
