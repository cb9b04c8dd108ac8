package s3

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/handlers/properties"
)

func TestNewClientRequiresEndpointAndBucket(t *testing.T) {
	_, err := NewClient(Options{Bucket: "photos"}, nil)
	assert.ErrorIs(t, err, ErrEndpointRequired)

	_, err = NewClient(Options{Endpoint: "http://localhost:9000"}, nil)
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestObjectURLUsesPublicEndpoint(t *testing.T) {
	c, err := NewClient(Options{
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://cdn.example.com/",
		Bucket:         "photos",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/photos/properties/p1/a.jpg", c.ObjectURL("/properties/p1/a.jpg"))
}

func TestUploadRejectsMissingInputBeforeNetwork(t *testing.T) {
	c, err := NewClient(Options{Endpoint: "localhost:9000", Bucket: "photos"}, nil)
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), "k", nil, "image/png")
	assert.ErrorIs(t, err, properties.ErrPhotoRequired)

	_, err = c.Upload(context.Background(), " / ", strings.NewReader("x"), "image/png")
	assert.ErrorIs(t, err, ErrKeyRequired)
}
