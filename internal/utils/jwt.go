package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for token digests
	"encoding/hex"  // hex encoding for random and hashed values
	"errors"        // sentinel error definitions
	"time"          // expiry computation

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // jti generation so concurrent issues stay distinct
)

// Decode failure modes. Callers rely on the distinction between a token that
// was valid once but ran out (ErrTokenExpired) and one that never was
// (ErrTokenInvalid); everything else about the failure stays server-side.
var (
	ErrTokenInvalid = errors.New("token signature invalid")
	ErrTokenExpired = errors.New("token expired")
)

// SessionToken is a signed JWT session credential together with its expiry.
// The Token field is the serialized bearer string handed to the client either
// as an HTTP-only cookie or in the JSON body.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// TokenClaims is the decoded content of a session token: the account it was
// minted for and when it stops being valid. Verification is stateless; the
// revocation registry and session tracker are separate checks.
type TokenClaims struct {
	AccountID uint64
	Exp       time.Time
}

// Issuer mints and decodes HS256 session tokens. The secret must match
// between issue and decode; TTL is fixed at construction.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer from the signing secret and token lifetime.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue builds and signs a session token for an account. The JWT carries the
// standard claims sub (account id), jti (random uuid), exp and iat. The jti
// guarantees that two tokens issued for the same account in the same second
// are still distinct strings, which the membership tracker depends on.
func (i *Issuer) Issue(accountID uint64) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(i.ttl)
	claims := jwt.MapClaims{
		"sub": accountID,
		"jti": uuid.NewString(),
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// Decode parses and verifies a session token. It returns ErrTokenExpired for
// a well-signed token past its exp claim and ErrTokenInvalid for anything
// else that fails verification (bad signature, wrong algorithm, malformed
// claims).
func (i *Issuer) Decode(raw string) (TokenClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC signatures are acceptable; reject anything else.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return TokenClaims{}, ErrTokenInvalid
	}
	expVal, ok := claims["exp"].(float64)
	if !ok {
		return TokenClaims{}, ErrTokenInvalid
	}
	return TokenClaims{
		AccountID: uint64(sub),
		Exp:       time.Unix(int64(expVal), 0).UTC(),
	}, nil
}

// HashToken returns the SHA-256 hex digest of a bearer token. The revocation
// registry and session tracker store digests rather than raw credentials so a
// leaked store dump cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewVerificationToken returns an opaque single-use token for email
// verification: 48 bytes of secure randomness, hex encoded.
func NewVerificationToken() (string, error) {
	return randomHex(48)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
