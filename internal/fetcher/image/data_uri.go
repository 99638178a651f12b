package imagefetcher

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

// decodeDataURI extracts the payload of an inline data URI. The metadata
// section ahead of the comma carries the media type and an optional base64
// marker; without the marker the payload is percent-encoded text.
func decodeDataURI(raw string, maxBytes int64) (harvest.ImageData, error) {
	trimmed := strings.TrimPrefix(raw, "data:")
	meta, payload, found := strings.Cut(trimmed, ",")
	if !found {
		return harvest.ImageData{}, errors.New("decode data uri: missing comma separator")
	}

	mediaType := meta
	isBase64 := false
	if i := strings.Index(meta, ";"); i >= 0 {
		mediaType = meta[:i]
		isBase64 = strings.Contains(meta[i:], "base64")
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return harvest.ImageData{}, fmt.Errorf("decode data uri: unsupported media type %q", mediaType)
	}

	var (
		body []byte
		err  error
	)
	if isBase64 {
		body, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return harvest.ImageData{}, fmt.Errorf("decode data uri payload: %w", err)
		}
	} else {
		// Data URIs are percent-encoded, not form-encoded; PathUnescape
		// keeps a literal '+' intact.
		text, unescapeErr := url.PathUnescape(payload)
		if unescapeErr != nil {
			return harvest.ImageData{}, fmt.Errorf("decode data uri payload: %w", unescapeErr)
		}
		body = []byte(text)
	}

	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return harvest.ImageData{}, fmt.Errorf("inline payload of %d bytes: %w", len(body), ErrTooLarge)
	}
	return harvest.ImageData{
		Body:        body,
		ContentType: mediaType,
	}, nil
}
