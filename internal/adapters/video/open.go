package video

import (
	"fmt"
	"mime"
	"net/http"
)

// Supported media types.
const (
	MediaTypeGIF = "image/gif"
)

// MediaType resolves the media type of an upload. An empty or generic
// content type is sniffed from the payload. Unsupported types yield
// ErrUnsupportedFormat.
func MediaType(contentType string, data []byte) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	switch mediaType {
	case MediaTypeGIF:
		return mediaType, nil
	default:
		return "", fmt.Errorf("%q: %w", mediaType, ErrUnsupportedFormat)
	}
}

// Open selects a Source for data by media type.
func Open(contentType string, data []byte, opts ...SourceOption) (Source, error) {
	mediaType, err := MediaType(contentType, data)
	if err != nil {
		return nil, err
	}
	switch mediaType {
	case MediaTypeGIF:
		return OpenGIF(data, opts...)
	default:
		return nil, fmt.Errorf("%q: %w", mediaType, ErrUnsupportedFormat)
	}
}
