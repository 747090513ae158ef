package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/google/uuid"
)

const (
	// CSRFSessionKey is the session key holding the token nonce.
	CSRFSessionKey = "csrf_nonce"
	// CSRFFormField is the form field name carrying the CSRF token.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token on fragment requests.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues and verifies tokens bound to a session.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using secret as HMAC key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the token of sess, creating its nonce on first use.
func (m *CSRFManager) EnsureToken(_ context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", ErrSessionMissing
	}
	nonce := sess.Get(CSRFSessionKey)
	if nonce == "" {
		nonce = uuid.NewString()
		sess.Set(CSRFSessionKey, nonce)
	}
	return m.sign(sess.ID, nonce), nil
}

// VerifyToken checks token against the session nonce.
func (m *CSRFManager) VerifyToken(_ context.Context, sess *Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	nonce := sess.Get(CSRFSessionKey)
	if nonce == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(m.sign(sess.ID, nonce)), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) sign(sessionID, nonce string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sessionID))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
