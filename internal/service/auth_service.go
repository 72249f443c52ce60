package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

const tokenIssuer = "enrollment-ledger"

// AuthConfig holds token signing settings.
type AuthConfig struct {
	Secret string
	Expiry time.Duration
}

// IssueTokenRequest describes the principal a token is minted for.
type IssueTokenRequest struct {
	UserID   string
	Email    string
	FullName string
	Role     models.UserRole
}

// AuthService signs and verifies bearer tokens. Tokens identify the actor
// recorded on audit entries and carry the role used for authorization.
type AuthService struct {
	config AuthConfig
	now    func() time.Time
}

// NewAuthService constructs AuthService.
func NewAuthService(config AuthConfig) *AuthService {
	if config.Expiry <= 0 {
		config.Expiry = 24 * time.Hour
	}
	return &AuthService{config: config, now: time.Now}
}

// IssueToken signs an HS256 access token for the principal.
func (s *AuthService) IssueToken(req IssueTokenRequest) (string, time.Time, error) {
	req.Role = models.UserRole(strings.ToUpper(string(req.Role)))
	switch req.Role {
	case models.RoleAdmin, models.RoleRegistrar, models.RoleViewer:
	default:
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		UserID:   req.UserID,
		Role:     req.Role,
		Email:    req.Email,
		FullName: req.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   req.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
