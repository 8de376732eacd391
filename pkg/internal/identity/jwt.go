package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
)

const jwtIssuer = "cloudvault"

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.StandardClaims
}

// JWTVerifier 本地 HS256 令牌，signin/signup 使用 Issue 签发.
type JWTVerifier struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTVerifier(secret string, ttl time.Duration) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("auth.jwt_secret is required in jwt mode")
	}

	return &JWTVerifier{secret: []byte(secret), ttl: ttl}, nil
}

// TTL 令牌有效期.
func (j *JWTVerifier) TTL() time.Duration {
	return j.ttl
}

// Issue 签发令牌.
func (j *JWTVerifier) Issue(id *Identity, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: id.Email,
		Name:  id.Name,
		StandardClaims: jwt.StandardClaims{
			Subject:   id.UserID,
			Issuer:    jwtIssuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(j.ttl).Unix(),
		},
	})

	s, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return s, nil
}

func (j *JWTVerifier) Verify(_ context.Context, cred Credential) (*Identity, error) {
	if cred.Token == "" {
		return nil, errMissing
	}

	var c claims

	token, err := jwt.ParseWithClaims(cred.Token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return j.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, errs.Wrap(errs.KindUnauthorized, "token expired", err)
		}

		return nil, errs.Wrap(errs.KindUnauthorized, "invalid token", err)
	}

	if !token.Valid || c.Subject == "" || c.Issuer != jwtIssuer {
		return nil, errs.Unauthorized("invalid token")
	}

	return &Identity{UserID: c.Subject, Email: c.Email, Name: c.Name}, nil
}
