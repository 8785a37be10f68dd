// Package avatar stores profile pictures on local disk. When the disk is not
// usable the picture is returned inline as a data URL instead.
package avatar

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("avatar must be a png, jpeg, gif or webp image")

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectType sniffs data and returns its image MIME type.
func DetectType(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	if _, ok := extensions[ct]; !ok {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedType, ct)
	}
	return ct, nil
}

type Store struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewStore writes files under dir and links them below baseURL. An empty dir
// disables disk storage so every avatar becomes a data URL.
func NewStore(dir, baseURL string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) BaseURL() string { return s.baseURL }

// Save stores data for userID and returns the URL to show.
func (s *Store) Save(ctx context.Context, userID uuid.UUID, data []byte) (string, error) {
	ct, err := DetectType(data)
	if err != nil {
		return "", err
	}

	url, err := s.writeFile(userID, ct, data)
	if err != nil {
		s.logger.WarnContext(ctx, "avatar storage failed, falling back to data url",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
		return DataURL(ct, data), nil
	}

	return url, nil
}

func (s *Store) writeFile(userID uuid.UUID, contentType string, data []byte) (string, error) {
	if s.dir == "" {
		return "", errors.New("avatar dir is not configured")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	// a fresh name per upload busts browser caches
	name := fmt.Sprintf("%s-%s%s", userID, uuid.NewString()[:8], extensions[contentType])

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", err
	}

	return s.baseURL + "/" + name, nil
}

func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
