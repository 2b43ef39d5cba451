// Package storage issues time-boxed upload capabilities for attachment files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidInput = errors.New("storage: invalid input")

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// SignedUpload is a capability to write exactly one object.
type SignedUpload struct {
	Bucket    string    `json:"bucket"`
	Path      string    `json:"path"`
	SignedURL string    `json:"signed_url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signer turns a bucket/path pair into a signed upload capability.
type Signer interface {
	SignUpload(ctx context.Context, bucket, objectPath string, ttl time.Duration) (SignedUpload, error)
}

// Request is the body of an upload URL request.
type Request struct {
	FileName string `json:"file_name" validate:"required,max=200"`
	Bucket   string `json:"bucket" validate:"required"`
}

// Uploader validates upload requests and delegates signing.
type Uploader struct {
	signer   Signer
	buckets  map[string]struct{}
	ttl      time.Duration
	now      func() time.Time
	validate *validator.Validate
}

func NewUploader(signer Signer, buckets []string, ttl time.Duration) *Uploader {
	set := make(map[string]struct{}, len(buckets))
	for _, b := range buckets {
		set[b] = struct{}{}
	}
	return &Uploader{
		signer:   signer,
		buckets:  set,
		ttl:      ttl,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Issue builds the object path <userID>/<unix-millis>-<name> and signs it.
func (u *Uploader) Issue(ctx context.Context, userID string, req Request) (SignedUpload, error) {
	if err := u.validate.Struct(req); err != nil {
		return SignedUpload{}, fmt.Errorf("%w: file_name and bucket are required", ErrInvalidInput)
	}
	if _, ok := u.buckets[req.Bucket]; !ok {
		return SignedUpload{}, fmt.Errorf("%w: unknown bucket %q", ErrInvalidInput, req.Bucket)
	}
	name, err := SanitizeFileName(req.FileName)
	if err != nil {
		return SignedUpload{}, err
	}
	objectPath := fmt.Sprintf("%s/%d-%s", userID, u.now().UnixMilli(), name)
	signed, err := u.signer.SignUpload(ctx, req.Bucket, objectPath, u.ttl)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("sign upload: %w", err)
	}
	return signed, nil
}

// SanitizeFileName keeps the base name, replaces anything outside
// [A-Za-z0-9._-] with '_' and enforces the attachment extensions.
func SanitizeFileName(raw string) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), ".")
	if name == "" || name == "_" {
		return "", fmt.Errorf("%w: file name is empty", ErrInvalidInput)
	}
	if _, ok := allowedExtensions[strings.ToLower(path.Ext(name))]; !ok {
		return "", fmt.Errorf("%w: only pdf, jpg and png files are accepted", ErrInvalidInput)
	}
	return name, nil
}
