package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ecommerce-transactions/config"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

const issuer = "ecommerce-transactions"

// TransactionClaims bind a bearer token to one transaction.
type TransactionClaims struct {
	TransactionID string `json:"transactionId"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	clock  func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		expiry: cfg.Expiry,
		clock:  time.Now,
	}
}

func (i *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	i.clock = clock
	return i
}

// Issue signs an HS256 token for transactionID.
func (i *TokenIssuer) Issue(transactionID uuid.UUID) (string, error) {
	now := i.clock()
	claims := TransactionClaims{
		TransactionID: transactionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   transactionID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign transaction token: %w", err)
	}
	return signed, nil
}

func (i *TokenIssuer) Parse(tokenString string) (TransactionClaims, error) {
	if tokenString == "" {
		return TransactionClaims{}, ecommerce_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &TransactionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.clock))
	if err != nil {
		return TransactionClaims{}, fmt.Errorf("%w: %v", ecommerce_errors.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*TransactionClaims)
	if !ok || !parsed.Valid {
		return TransactionClaims{}, ecommerce_errors.ErrUnauthorized
	}
	if _, err := uuid.Parse(claims.TransactionID); err != nil {
		return TransactionClaims{}, ecommerce_errors.ErrUnauthorized
	}
	return *claims, nil
}

type claimsKey struct{}

func WithClaims(ctx context.Context, claims TransactionClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (TransactionClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(TransactionClaims)
	return claims, ok
}
