package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsNoSuchKey(t *testing.T) {
	assert.False(t, IsNoSuchKey(nil))
	assert.True(t, IsNoSuchKey(fmt.Errorf("get: %w", minio.ErrorResponse{Code: "NoSuchKey"})))
	assert.True(t, IsNoSuchKey(errors.New("The specified key does not exist.")))
	assert.False(t, IsNoSuchKey(errors.New("connection refused")))
}

func TestWrapMissing(t *testing.T) {
	err := wrapMissing("user-assets/1/me.png", "stat", minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."})
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Contains(t, err.Error(), "user-assets/1/me.png")

	cause := errors.New("connection reset by peer")
	err = wrapMissing("user-assets/1/me.png", "get", cause)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, err, cause)
}

func TestBucketLookup(t *testing.T) {
	for raw, want := range map[string]minio.BucketLookupType{
		"":      minio.BucketLookupAuto,
		"AUTO":  minio.BucketLookupAuto,
		" dns ": minio.BucketLookupDNS,
		"path":  minio.BucketLookupPath,
	} {
		got, err := bucketLookup(raw)
		assert.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := bucketLookup("virtual")
	assert.Error(t, err)
}
