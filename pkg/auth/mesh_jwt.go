// Package auth implements the internal mesh-auth bearer token: a short
// lived, HMAC-signed JWT passed between the Facet Service, Policy Engine,
// Orchestrator, and Governance surfaces (all exposed on the same gin
// router in this deployment, but signed/verified as if they were
// separate services, matching the teacher's service-to-service JWT
// pattern).
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MeshClaims is the internal mesh-auth token: just enough to resolve the
// acting user/service and their role for the policy and admin gates.
type MeshClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// MeshTokenTTL is the lifetime of a minted mesh token.
const MeshTokenTTL = 15 * time.Minute

// MeshAuthService signs and validates the mesh-auth bearer token.
type MeshAuthService struct {
	signingKey []byte
	issuer     string
}

func NewMeshAuthService(signingKey, issuer string) *MeshAuthService {
	return &MeshAuthService{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken mints a mesh-auth token for userID/role.
func (s *MeshAuthService) GenerateToken(userID uuid.UUID, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(MeshTokenTTL)
	claims := MeshClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign mesh token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses and verifies a bearer token, rejecting anything
// not signed with HS256 under this service's key.
func (s *MeshAuthService) ValidateToken(tokenString string) (*MeshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &MeshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("parse mesh token: %w", err)
	}

	claims, ok := token.Claims.(*MeshClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid mesh token")
	}
	return claims, nil
}
