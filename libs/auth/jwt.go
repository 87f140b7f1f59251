package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the back-office claims carried in bearer tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// KeySource resolves RS256 public keys by key id (typically a JWKS endpoint).
type KeySource interface {
	Get(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

type VerifierConfig struct {
	// Secret enables HS256 tokens.
	Secret string
	// Keys enables RS256 tokens.
	Keys     KeySource
	Issuer   string
	Audience string
}

type Verifier struct {
	cfg     VerifierConfig
	methods []string
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	var methods []string
	if cfg.Secret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.Keys != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	return &Verifier{cfg: cfg, methods: methods}
}

// Enabled reports whether any signing method is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.methods) > 0
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if !v.Enabled() {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			return []byte(v.cfg.Secret), nil
		case jwt.SigningMethodRS256.Alg():
			kid, _ := t.Header["kid"].(string)
			return v.cfg.Keys.Get(ctx, kid)
		default:
			return nil, ErrInvalidToken
		}
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// SignHS256 issues a token for tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
