package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"vistorias/pkg/model"
)

var ErrInvalid = errors.New("invalid token")

const defaultSecret = "change-me-secret"

type Claims struct {
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
	Nome   string `json:"nome"`
	Nivel  uint   `json:"nivel"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool { return c.Nivel == model.NivelAdmin }

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if secret == "" {
		secret = defaultSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// UsingDefaultSecret reports whether no secret was configured.
func (i *Issuer) UsingDefaultSecret() bool { return string(i.secret) == defaultSecret }

func (i *Issuer) Generate(u model.Usuario) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Nome:   u.Nome,
		Nivel:  u.NivelAcessoID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalid
	}
	if claims, ok := token.Claims.(*Claims); ok {
		return claims, nil
	}
	return nil, ErrInvalid
}

func HashPassword(senha string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(senha), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, senha string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(senha)) == nil
}

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller's claims, or nil on unauthenticated routes.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey{}).(*Claims)
	return c
}

// PodeAcessarVistoria is the owner rule: admins see every vistoria,
// inspectors only their own.
func PodeAcessarVistoria(c *Claims, v model.Vistoria) bool {
	if c == nil {
		return false
	}
	return c.IsAdmin() || v.EhDe(c.UserID)
}
