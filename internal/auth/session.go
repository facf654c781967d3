package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// SessionCookieName is the cookie the browser carries the session token in.
const SessionCookieName = "kubarr_session"

// DefaultSessionTTL is the fixed session lifetime applied at issuance.
// Sessions never renew on activity; last_accessed_at is tracked purely
// for observability, not for extending expiry.
const DefaultSessionTTL = 7 * 24 * time.Hour

// sidClaims is the entire JWT payload: a session id and nothing else.
// Every other fact about the session (user, expiry, revocation) lives in
// the sessions table and is looked up fresh on each request.
type sidClaims struct {
	SID string `json:"sid"`
}

// SessionManager issues and validates session tokens signed with an RSA
// keypair, RS256. The signature only attests that the session id hasn't
// been tampered with; the session's actual validity is always re-checked
// against the database by the Auth Gate.
type SessionManager struct {
	signer    jose.Signer
	publicKey *rsa.PublicKey
}

// NewSessionManager builds a manager from a PEM-encoded PKCS#1 RSA private
// key, as persisted via GenerateSigningKeyPEM.
func NewSessionManager(privateKeyPEM string) (*SessionManager, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("decoding PEM private key: no block found")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing RSA private key: %w", err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	return &SessionManager{signer: signer, publicKey: &key.PublicKey}, nil
}

// IssueToken signs a new token carrying only sessionID.
func (m *SessionManager) IssueToken(sessionID string) (string, error) {
	return jwt.Signed(m.signer).Claims(sidClaims{SID: sessionID}).Serialize()
}

// ValidateToken verifies the signature and returns the embedded session id.
// It does not consult the database; callers must still look up the
// session row and check its expiry/revocation themselves.
func (m *SessionManager) ValidateToken(token string) (string, error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	var claims sidClaims
	if err := parsed.Claims(m.publicKey, &claims); err != nil {
		return "", fmt.Errorf("invalid signature: %w", err)
	}
	if claims.SID == "" {
		return "", fmt.Errorf("token carries no session id")
	}
	return claims.SID, nil
}

// GenerateSigningKeyPEM creates a fresh 2048-bit RSA keypair and returns the
// private key PEM-encoded, for first-boot persistence in system_settings.
func GenerateSigningKeyPEM() (string, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", fmt.Errorf("generating RSA key: %w", err)
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}
