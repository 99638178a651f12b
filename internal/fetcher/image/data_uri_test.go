package imagefetcher

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURIBase64(t *testing.T) {
	t.Parallel()

	payload := base64.StdEncoding.EncodeToString([]byte("gif-bytes"))
	fetcher := New(Config{})
	data, err := fetcher.FetchImage(context.Background(), "data:image/gif;base64,"+payload)
	require.NoError(t, err)
	assert.Equal(t, "gif-bytes", string(data.Body))
	assert.Equal(t, "image/gif", data.ContentType)
}

func TestDecodeDataURIPercentEncoded(t *testing.T) {
	t.Parallel()

	data, err := decodeDataURI("data:image/svg+xml,%3Csvg%3E%3C%2Fsvg%3E", 0)
	require.NoError(t, err)
	assert.Equal(t, "<svg></svg>", string(data.Body))
	assert.Equal(t, "image/svg+xml", data.ContentType)
}

func TestDecodeDataURIKeepsLiteralPlus(t *testing.T) {
	t.Parallel()

	data, err := decodeDataURI("data:image/svg+xml,%3Csvg%20d%3D%22M0+0+L10+10%22%2F%3E", 0)
	require.NoError(t, err)
	assert.Equal(t, `<svg d="M0+0+L10+10"/>`, string(data.Body))
}

func TestDecodeDataURIInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		uri  string
	}{
		{name: "missing comma", uri: "data:image/png;base64"},
		{name: "bad base64", uri: "data:image/png;base64,!!not-base64!!"},
		{name: "non image media type", uri: "data:text/plain,hello"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeDataURI(tt.uri, 0)
			assert.Error(t, err)
		})
	}
}

func TestDecodeDataURISizeCap(t *testing.T) {
	t.Parallel()

	payload := base64.StdEncoding.EncodeToString(make([]byte, 64))
	_, err := decodeDataURI("data:image/png;base64,"+payload, 32)
	assert.ErrorIs(t, err, ErrTooLarge)
}
