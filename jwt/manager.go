// Package jwt mints and verifies the signed tokens used by the auth core:
// short-lived access tokens, longer-lived refresh tokens, stateless CSRF
// tokens, and email-verification tokens. Each token carries a class claim
// so one class can never be presented where another is expected.
package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 keypair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Token classes. Parse* helpers reject tokens of the wrong class.
const (
	ClassAccess  = "access"
	ClassRefresh = "refresh"
	ClassVerify  = "verify"
)

// ErrWrongClass is returned when a token of another class is presented.
var ErrWrongClass = errors.New("jwt: wrong token class")

// Config holds signing material and lifetimes.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	VerifyTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Claims is the payload shared by all token classes: user, session, tenant,
// and class.
type Claims struct {
	UID   string `json:"uid"`
	SID   string `json:"sid,omitempty"`
	TID   string `json:"tid,omitempty"`
	Class string `json:"cls"`
	jwt.RegisteredClaims
}

// Manager issues and parses tokens with a fixed configuration.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: invalid TTL configuration")
	}
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = 24 * time.Hour
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("jwt: hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("jwt: unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess mints a ClassAccess token for (userID, sessionID, tenantID).
func (m *Manager) IssueAccess(userID, sessionID, tenantID string) (string, error) {
	return m.issue(userID, sessionID, tenantID, ClassAccess, m.config.AccessTTL)
}

// IssueRefresh mints a ClassRefresh token with the refresh lifetime. The
// caller must also persist the server-side record; the signature alone
// cannot witness rotation.
func (m *Manager) IssueRefresh(userID, sessionID, tenantID string) (string, error) {
	return m.issue(userID, sessionID, tenantID, ClassRefresh, m.config.RefreshTTL)
}

// IssueVerification mints an email-verification token bound to the user.
func (m *Manager) IssueVerification(userID, tenantID string) (string, error) {
	return m.issue(userID, "", tenantID, ClassVerify, m.config.VerifyTTL)
}

func (m *Manager) issue(userID, sessionID, tenantID, class string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   userID,
		SID:   sessionID,
		TID:   tenantID,
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(m.method(), claims)
	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

// ParseAccess verifies signature, expiry, and class of an access token.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, ClassAccess)
}

// ParseRefresh verifies signature, expiry, and class of a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, ClassRefresh)
}

// ParseVerification verifies an email-verification token.
func (m *Manager) ParseVerification(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, ClassVerify)
}

func (m *Manager) parse(tokenStr, class string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Class != class {
		return nil, ErrWrongClass
	}

	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (m *Manager) signKey() (interface{}, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(m.config.PrivateKey)
	}
	return m.config.PrivateKey, nil
}

func (m *Manager) verifyKey() (interface{}, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(m.config.PublicKey)
	}
	return m.config.PrivateKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 public key type")
	}
	return edKey, nil
}
