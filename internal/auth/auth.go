// Package auth resolves the authenticated user of an HTTP request.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrWeakSecret is returned when the signing secret is too short to be safe.
var ErrWeakSecret = errors.New("auth: signing secret must be at least 32 bytes")

// minSecretLen matches the SHA-256 block guidance for HMAC keys.
const minSecretLen = 32

// User is the authenticated principal.
type User struct {
	ID string
}

// Session is the resolved authentication state of a request.
type Session struct {
	User *User
}

// Authenticator resolves the session of a request. A nil session means the
// request is unauthenticated.
type Authenticator interface {
	Session(r *http.Request) *Session
}

// TokenAuthenticator authenticates bearer tokens of the form
// base64url(subject).base64url(expiry).base64url(signature), signed with
// HMAC-SHA256 over "subject.expiry".
type TokenAuthenticator struct {
	secret []byte
	now    func() time.Time
}

// NewTokenAuthenticator creates a TokenAuthenticator. The secret must be at
// least 32 bytes.
func NewTokenAuthenticator(secret []byte) (*TokenAuthenticator, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenAuthenticator{secret: key, now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl.
func (a *TokenAuthenticator) Issue(userID string, ttl time.Duration) string {
	enc := base64.RawURLEncoding
	sub := enc.EncodeToString([]byte(userID))
	exp := enc.EncodeToString([]byte(strconv.FormatInt(a.now().Add(ttl).Unix(), 10)))
	sig := a.sign(sub + "." + exp)
	return sub + "." + exp + "." + sig
}

// Session implements Authenticator. Malformed, tampered, or expired tokens
// yield a nil session.
func (a *TokenAuthenticator) Session(r *http.Request) *Session {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil
	}

	userID, err := a.verify(token)
	if err != nil {
		return nil
	}
	return &Session{User: &User{ID: userID}}
}

func (a *TokenAuthenticator) verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", errors.New("malformed token")
	}

	want := a.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return "", errors.New("signature mismatch")
	}

	enc := base64.RawURLEncoding
	expRaw, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decoding expiry: %w", err)
	}
	exp, err := strconv.ParseInt(string(expRaw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("parsing expiry: %w", err)
	}
	if a.now().Unix() >= exp {
		return "", errors.New("token expired")
	}

	sub, err := enc.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decoding subject: %w", err)
	}
	if len(sub) == 0 {
		return "", errors.New("empty subject")
	}
	return string(sub), nil
}

func (a *TokenAuthenticator) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
