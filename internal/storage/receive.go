package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidCapability = errors.New("storage: invalid upload token")

// TokenVerifier checks an upload capability issued by a Signer.
type TokenVerifier interface {
	Verify(token string) (*UploadClaims, error)
}

// StoredObject describes a written upload. Key mirrors the hosted storage
// response field.
type StoredObject struct {
	Key    string `json:"Key"`
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}

// Receiver redeems upload capabilities against an ObjectStore.
type Receiver struct {
	tokens TokenVerifier
	store  ObjectStore
}

func NewReceiver(tokens TokenVerifier, store ObjectStore) *Receiver {
	return &Receiver{tokens: tokens, store: store}
}

// Receive writes body to bucket/objectPath if token was issued for exactly
// that object, enforcing the token's size ceiling.
func (rc *Receiver) Receive(ctx context.Context, bucket, objectPath, token string, body io.Reader) (StoredObject, error) {
	if token == "" {
		return StoredObject{}, ErrInvalidCapability
	}
	claims, err := rc.tokens.Verify(token)
	if err != nil {
		return StoredObject{}, fmt.Errorf("%w: %v", ErrInvalidCapability, err)
	}
	if claims.Bucket != bucket || claims.Path != objectPath {
		return StoredObject{}, fmt.Errorf("%w: token was issued for another object", ErrInvalidCapability)
	}
	if claims.MaxBytes <= 0 {
		return StoredObject{}, fmt.Errorf("%w: token carries no size limit", ErrInvalidCapability)
	}
	n, err := rc.store.Put(ctx, bucket, objectPath, body, claims.MaxBytes)
	if err != nil {
		return StoredObject{}, err
	}
	return StoredObject{Key: bucket + "/" + objectPath, Bucket: bucket, Path: objectPath, Size: n}, nil
}
