// Package storage persists voice-note blobs on local disk. Blobs are
// addressed by a random name and served back over a static file route;
// the database only ever holds the resulting URL.
package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/duochat/duochat-server/internal/errors"
)

// URLPrefix is the public route blobs are served under.
const URLPrefix = "/voice/"

var allowedExtensions = map[string]bool{
	".m4a":  true,
	".mp3":  true,
	".ogg":  true,
	".wav":  true,
	".webm": true,
}

type VoiceStore struct {
	dir      string
	maxBytes int64
}

func NewVoiceStore(dir string, maxBytes int64) (*VoiceStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create voice dir: %w", err)
	}
	return &VoiceStore{dir: dir, maxBytes: maxBytes}, nil
}

// Save streams a blob to disk under a fresh random name and returns the
// public URL. Writes exceeding the size cap abort and leave nothing
// behind.
func (s *VoiceStore) Save(r io.Reader, ext string) (string, error) {
	if !allowedExtensions[ext] {
		return "", apperrors.ValidationError(fmt.Sprintf("Unsupported audio format %q", ext))
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperrors.Upstream("voice storage", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.removePartial(path)
		return "", apperrors.Upstream("voice storage", err)
	}

	if written > s.maxBytes {
		s.removePartial(path)
		return "", apperrors.ValidationError("Voice note exceeds the size limit")
	}

	return URLPrefix + name, nil
}

func (s *VoiceStore) removePartial(path string) {
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove partial voice file")
	}
}

// Handler serves stored blobs. Mounted under URLPrefix; the file server
// rejects path traversal on its own.
func (s *VoiceStore) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
}
