package filelink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Validation errors returned by the service
var (
	ErrInvalidSignature = errors.New("filelink: invalid signature")
	ErrLinkExpired      = errors.New("filelink: link expired")
	ErrOutsideRoot      = errors.New("filelink: path outside downloads directory")
	ErrNotFound         = errors.New("filelink: file not found")
)

// Service generates and validates HMAC-signed expiring URLs for downloaded
// documents so notification recipients can fetch them without portal access.
type Service struct {
	downloadsDir string
	baseURL      string
	secret       []byte
	expiry       time.Duration
}

// NewService creates a new signed link service
func NewService(downloadsDir, baseURL, secretKey string, expiry time.Duration) (*Service, error) {
	if secretKey == "" {
		return nil, errors.New("filelink: secret key is required")
	}
	abs, err := filepath.Abs(downloadsDir)
	if err != nil {
		return nil, fmt.Errorf("filelink: resolve downloads directory: %w", err)
	}
	return &Service{
		downloadsDir: abs,
		baseURL:      strings.TrimRight(baseURL, "/"),
		secret:       []byte(secretKey),
		expiry:       expiry,
	}, nil
}

// SignedURL builds an expiring URL for a file under the downloads directory
func (s *Service) SignedURL(filePath string, now time.Time) (string, error) {
	rel, err := s.relativePath(filePath)
	if err != nil {
		return "", err
	}

	expires := now.Add(s.expiry).Unix()
	query := url.Values{
		"path":    {rel},
		"expires": {strconv.FormatInt(expires, 10)},
		"sig":     {s.sign(rel, expires)},
	}
	return s.baseURL + "?" + query.Encode(), nil
}

// Validate checks signature, expiry and containment, returning the absolute
// file path to serve.
func (s *Service) Validate(relPath string, expires int64, sig string, now time.Time) (string, error) {
	expected := s.sign(relPath, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", ErrInvalidSignature
	}
	if now.Unix() > expires {
		return "", ErrLinkExpired
	}

	abs := filepath.Join(s.downloadsDir, filepath.FromSlash(relPath))
	abs = filepath.Clean(abs)
	if abs != s.downloadsDir && !strings.HasPrefix(abs, s.downloadsDir+string(os.PathSeparator)) {
		return "", ErrOutsideRoot
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return abs, nil
}

func (s *Service) sign(relPath string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", relPath, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) relativePath(filePath string) (string, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("filelink: resolve file path: %w", err)
	}
	rel, err := filepath.Rel(s.downloadsDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrOutsideRoot
	}
	return filepath.ToSlash(rel), nil
}
