package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// AuthConfig defines the client-credentials settings of the gateway.
type AuthConfig struct {
	Secret           string
	TokenTTL         time.Duration
	Issuer           string
	ClientID         string
	ClientSecretHash string
}

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	GrantType    string `json:"grant_type" validate:"required,eq=client_credentials"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Claims are the JWT claims of a gateway token.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// AuthService issues and validates gateway access tokens.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	return &AuthService{validator: validate, logger: logger, config: config, now: time.Now}
}

// IssueToken exchanges client credentials for a signed access token.
func (s *AuthService) IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}
	if s.config.ClientID == "" || s.config.ClientSecretHash == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "gateway client credentials are not configured")
	}
	if subtle.ConstantTimeCompare([]byte(req.ClientID), []byte(s.config.ClientID)) != 1 {
		return nil, appErrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.ClientSecretHash), []byte(req.ClientSecret)); err != nil {
		s.logger.Warn("rejected client credentials", zap.String("client_id", req.ClientID))
		return nil, appErrors.ErrInvalidCredentials
	}

	issued := s.now().UTC()
	token, err := s.sign(req.ClientID, issued)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.TokenTTL.Seconds()),
		IssuedAt:    issued,
	}, nil
}

func (s *AuthService) sign(clientID string, issued time.Time) (string, error) {
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   clientID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.config.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, fmt.Sprintf("invalid token: %v", err))
	}
	if !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}
