package workflow

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// DefaultMaxArtifactSize bounds one uploaded report image.
const DefaultMaxArtifactSize = 10 << 20

var (
	ErrNotImage     = errors.New("file is not an image")
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// Artifact is one uploaded report image. It lives for a single upload and
// is never persisted.
type Artifact struct {
	FileName  string
	MediaType string
	Data      []byte
}

// IsImage reports whether mediaType is an image/* type.
func IsImage(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/")
}

// NewArtifact validates an image selection. The declared media type wins;
// content sniffing fills in when the client declared none.
func NewArtifact(fileName, mediaType string, data []byte) (Artifact, error) {
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	if !IsImage(mediaType) {
		return Artifact{}, ErrNotImage
	}
	if len(data) == 0 {
		return Artifact{}, ErrEmptyFile
	}
	mt, _, _ := mime.ParseMediaType(mediaType)
	return Artifact{FileName: fileName, MediaType: mt, Data: data}, nil
}

// ReadArtifact reads and validates a multipart upload. The media type is
// checked before the body is read.
func ReadArtifact(fh *multipart.FileHeader, maxSize int64) (Artifact, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxArtifactSize
	}
	declared := fh.Header.Get("Content-Type")
	if declared != "" && declared != "application/octet-stream" && !IsImage(declared) {
		return Artifact{}, ErrNotImage
	}
	if fh.Size > maxSize {
		return Artifact{}, ErrFileTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return Artifact{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return Artifact{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return Artifact{}, ErrFileTooLarge
	}
	return NewArtifact(fh.Filename, declared, data)
}
