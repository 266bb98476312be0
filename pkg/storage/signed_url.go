package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for malformed or tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadSigner issues and verifies signed download tokens binding a stored file to its owner.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDownloadSigner constructs a signer with the provided secret and TTL.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token referencing owner and the stored file name.
func (s *DownloadSigner) Sign(owner, name string) (string, time.Time, error) {
	if owner == "" || name == "" {
		return "", time.Time{}, errors.New("owner and name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	parts := []string{
		encodeSegment(owner),
		strconv.FormatInt(expiresAt.Unix(), 10),
		encodeSegment(name),
	}
	parts = append(parts, s.mac(parts))
	return strings.Join(parts, "."), expiresAt, nil
}

// Verify validates token and returns the embedded owner and file name.
func (s *DownloadSigner) Verify(token string) (owner, name string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.mac(parts[:3])), []byte(parts[3])) {
		return "", "", time.Time{}, ErrInvalidToken
	}
	ownerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: owner: %v", ErrInvalidToken, err)
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: expiry: %v", ErrInvalidToken, err)
	}
	nameRaw, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: name: %v", ErrInvalidToken, err)
	}
	expiresAt = time.Unix(unix, 0)
	if s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return string(ownerRaw), string(nameRaw), expiresAt, nil
}

func (s *DownloadSigner) mac(parts []string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

func encodeSegment(v string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(v))
}
