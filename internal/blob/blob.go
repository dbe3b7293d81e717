// Package blob stores evidence files on the local filesystem and issues
// expiring HMAC-signed download URLs for them.
package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoBlob     = errors.New("blob: not found")
	ErrBadRef     = errors.New("blob: malformed ref")
	ErrBadSig     = errors.New("blob: signature mismatch")
	ErrExpiredURL = errors.New("blob: url expired")
)

type Store struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// New creates the storage directory if needed. baseURL is the externally
// reachable prefix signed URLs are built on, without a trailing slash.
func New(dir, secret, baseURL string) (*Store, error) {
	if secret == "" {
		return nil, errors.New("blob: empty signing secret")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

// Save writes data under a fresh ref and returns it. ext keeps the
// original file extension so stored blobs stay identifiable on disk.
func (s *Store) Save(data []byte, ext string) (string, error) {
	ext = strings.TrimLeft(ext, ".")
	ref := uuid.New().String()
	if ext != "" && validRef(ref+"."+ext) {
		ref += "." + ext
	}
	if err := os.WriteFile(filepath.Join(s.dir, ref), data, 0o600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return ref, nil
}

// Download reads a stored blob. Refs are validated so a stored ref can
// never escape the storage directory.
func (s *Store) Download(_ context.Context, ref string) ([]byte, error) {
	if !validRef(ref) {
		return nil, ErrBadRef
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoBlob
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// SignedURL returns a URL that grants access to ref until the ttl runs
// out. The signature covers both the ref and the expiry.
func (s *Store) SignedURL(_ context.Context, ref string, ttl time.Duration) (string, error) {
	if !validRef(ref) {
		return "", ErrBadRef
	}
	exp := s.now().Add(ttl).Unix()
	return fmt.Sprintf("%s/blobs/%s?exp=%d&sig=%s", s.baseURL, ref, exp, s.sign(ref, exp)), nil
}

// Verify checks a presented ref, expiry and signature.
func (s *Store) Verify(ref string, exp int64, sig string) error {
	if !validRef(ref) {
		return ErrBadRef
	}
	if !hmac.Equal([]byte(s.sign(ref, exp)), []byte(sig)) {
		return ErrBadSig
	}
	if s.now().Unix() > exp {
		return ErrExpiredURL
	}
	return nil
}

func (s *Store) sign(ref string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", ref, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func validRef(ref string) bool {
	if ref == "" || strings.Contains(ref, "..") {
		return false
	}
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
