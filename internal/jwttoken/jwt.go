package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lifeline/internal/platform/middleware"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
)

// Claims represents the JWT claims for our access tokens. The role claim is
// what the route-level authorization gates on; donor_id / hospital_id bind the
// principal to its profile record.
type Claims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	DonorID    string `json:"donor_id,omitempty"`
	HospitalID string `json:"hospital_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// TokenSubject carries everything that goes into an access token.
type TokenSubject struct {
	UserID     id.UserID
	Role       id.Role
	DonorID    id.DonorID
	HospitalID id.HospitalID
}

func (s *JWTService) GenerateAccessToken(subject TokenSubject, expiresIn time.Duration) (string, error) {
	claims := Claims{
		UserID: subject.UserID.String(),
		Role:   subject.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	}
	if !subject.DonorID.IsNil() {
		claims.DonorID = subject.DonorID.String()
	}
	if !subject.HospitalID.IsNil() {
		claims.HospitalID = subject.HospitalID.String()
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken parses and verifies a token, returning middleware claims ready
// for context injection.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	out := &middleware.JWTClaims{UserID: userID, Role: role}
	if claims.DonorID != "" {
		donorID, err := id.ParseDonorID(claims.DonorID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
		}
		out.DonorID = donorID
	}
	if claims.HospitalID != "" {
		hospitalID, err := id.ParseHospitalID(claims.HospitalID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
		}
		out.HospitalID = hospitalID
	}
	return out, nil
}
