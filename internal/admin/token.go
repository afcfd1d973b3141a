package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin 是管理接口要求的角色。
const RoleAdmin = "admin"

// ErrUnauthorized 表示令牌缺失或无效。
var ErrUnauthorized = errors.New("unauthorized")

// Claims 是管理令牌的声明。
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken 使用 HS256 签发管理令牌。
func IssueToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("admin secret missing")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken 校验管理令牌并返回声明。
func VerifyToken(secret, token string) (*Claims, error) {
	if secret == "" || token == "" {
		return nil, ErrUnauthorized
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: role %q", ErrUnauthorized, claims.Role)
	}
	return claims, nil
}
