package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	storage_go "github.com/supabase-community/storage-go"

	"wastechem.org/internal/datasvc"
	"wastechem.org/internal/storage"
)

// SignedUploadTTL is the lifetime the storage service gives a signed upload
// URL. It is only used when the returned token carries no expiry.
const SignedUploadTTL = 2 * time.Hour

// SignUpload asks the storage service for a signed upload URL for
// bucket/objectPath. The service fixes the URL lifetime, so ttl is not sent;
// the reported expiry is read from the token.
func (c *Client) SignUpload(ctx context.Context, bucket, objectPath string, _ time.Duration) (storage.SignedUpload, error) {
	resp, err := call(ctx, c.timeout, func() (storage_go.SignedUploadUrlResponse, error) {
		return c.storage.CreateSignedUploadUrl(bucket, escapeObjectPath(objectPath))
	})
	if err != nil {
		return storage.SignedUpload{}, &datasvc.Error{Op: "sign_upload", Table: bucket, Err: err}
	}
	if resp.Url == "" {
		return storage.SignedUpload{}, &datasvc.Error{Op: "sign_upload", Table: bucket, Status: http.StatusBadGateway, Message: "no signed url returned"}
	}
	u, err := url.Parse(resp.Url)
	if err != nil {
		return storage.SignedUpload{}, &datasvc.Error{Op: "sign_upload", Table: bucket, Status: http.StatusBadGateway, Message: "malformed signed url", Err: err}
	}
	token := u.Query().Get("token")
	if token == "" {
		return storage.SignedUpload{}, &datasvc.Error{Op: "sign_upload", Table: bucket, Status: http.StatusBadGateway, Message: "signed url carries no token"}
	}

	signed := resp.Url
	if !u.IsAbs() {
		signed = c.baseURL + "/storage/v1" + resp.Url
	}
	return storage.SignedUpload{
		Bucket:    bucket,
		Path:      objectPath,
		SignedURL: signed,
		Token:     token,
		ExpiresAt: c.tokenExpiry(token),
	}, nil
}

// tokenExpiry reads exp from the storage token without verifying it; the
// signature belongs to the storage service.
func (c *Client) tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time.UTC()
	}
	return c.now().UTC().Add(SignedUploadTTL)
}

func escapeObjectPath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
