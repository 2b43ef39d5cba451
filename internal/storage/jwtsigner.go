package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UploadClaims bind a token to one object and a size ceiling.
type UploadClaims struct {
	Bucket   string `json:"bucket"`
	Path     string `json:"path"`
	MaxBytes int64  `json:"max_bytes"`
	jwt.RegisteredClaims
}

// JWTSigner issues HS256 upload capabilities for self-hosted deployments.
// baseURL is the public address of the service that redeems them.
type JWTSigner struct {
	secret   []byte
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

func NewJWTSigner(secret, baseURL string, maxBytes int64) (*JWTSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("storage: signing secret is not configured")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("storage: public url %q must be absolute", baseURL)
	}
	return &JWTSigner{
		secret:   []byte(secret),
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

func (s *JWTSigner) SignUpload(_ context.Context, bucket, objectPath string, ttl time.Duration) (SignedUpload, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := UploadClaims{
		Bucket:   bucket,
		Path:     objectPath,
		MaxBytes: s.maxBytes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   bucket + "/" + objectPath,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("sign upload token: %w", err)
	}
	return SignedUpload{
		Bucket:    bucket,
		Path:      objectPath,
		SignedURL: fmt.Sprintf("%s/storage/v1/object/upload/sign/%s/%s?token=%s", s.baseURL, url.PathEscape(bucket), escapePath(objectPath), url.QueryEscape(token)),
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// Verify checks a token issued by SignUpload and returns its claims.
func (s *JWTSigner) Verify(token string) (*UploadClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &UploadClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("verify upload token: %w", err)
	}
	claims, ok := parsed.Claims.(*UploadClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("verify upload token: invalid claims")
	}
	return claims, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
