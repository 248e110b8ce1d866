// Package session carries the sender's credentials across requests in
// an encrypted, HTTP-only cookie. Nothing is stored server-side; the
// cookie is the session.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/zapsend/zapsend/internal/config"
)

const cookieName = "zapsend_session"

// ErrNoSession marks a missing, expired or undecryptable session.
var ErrNoSession = errors.New("no active session")

// Credentials identify the sender for the lifetime of a session. The
// app password never leaves the encrypted cookie.
type Credentials struct {
	Email       string    `json:"email"`
	AppPassword string    `json:"app_password"`
	LoginTime   time.Time `json:"login_time"`
}

// Manager seals and opens session cookies.
type Manager struct {
	key    [32]byte
	ttl    time.Duration
	secure bool
}

// NewManager derives the sealing key from the configured secret.
// secure controls the cookie's Secure attribute.
func NewManager(cfg config.SessionConfig, secure bool) *Manager {
	return &Manager{
		key:    sha256.Sum256([]byte(cfg.Secret)),
		ttl:    cfg.TTL,
		secure: secure,
	}
}

// Issue seals the credentials into a fresh session cookie.
func (m *Manager) Issue(w http.ResponseWriter, creds *Credentials) error {
	token, err := m.seal(creds)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get returns the credentials carried by the request, or ErrNoSession.
func (m *Manager) Get(r *http.Request) (*Credentials, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil, ErrNoSession
	}

	creds, err := m.open(cookie.Value)
	if err != nil {
		return nil, ErrNoSession
	}
	if m.ttl > 0 && time.Since(creds.LoginTime) > m.ttl {
		return nil, ErrNoSession
	}
	return creds, nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) seal(creds *Credentials) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &m.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (m *Manager) open(token string) (*Credentials, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(sealed) < 24 {
		return nil, ErrNoSession
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, &m.key)
	if !ok {
		return nil, ErrNoSession
	}

	creds := &Credentials{}
	if err := json.Unmarshal(plaintext, creds); err != nil {
		return nil, ErrNoSession
	}
	return creds, nil
}
