package signalserver

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/pkg/pubkey"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/signalserver/httpx"
)

var errInvalidToken = errors.New("invalid token")

// Claims are the claims of a publisher token. An empty subject grants every stream.
type Claims struct {
	jwt.RegisteredClaims
}

// authenticator verifies bearer tokens signed with HS256 or EdDSA.
type authenticator struct {
	secret    []byte
	publicKey ed25519.PublicKey
}

func newAuthenticator(config AuthConfigOptions) (*authenticator, error) {
	if config.Secret == "" && config.PublicKeyFile == "" {
		return nil, nil
	}
	a := &authenticator{secret: []byte(config.Secret)}
	if config.PublicKeyFile != "" {
		key, err := pubkey.LoadEd25519(config.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		a.publicKey = key
	}
	return a, nil
}

func (a *authenticator) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(a.secret) > 0 {
			return a.secret, nil
		}
	case *jwt.SigningMethodEd25519:
		if a.publicKey != nil {
			return a.publicKey, nil
		}
	}
	return nil, fmt.Errorf("%w: unexpected signing method %v", errInvalidToken, token.Header["alg"])
}

// verify checks the token and that it grants streamID.
func (a *authenticator) verify(tokenString, streamID string) error {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, a.keyFunc)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if !token.Valid {
		return errInvalidToken
	}
	if claims.Subject != "" && claims.Subject != streamID {
		return fmt.Errorf("%w: token is for stream %q", errInvalidToken, claims.Subject)
	}
	return nil
}

// middleware rejects requests without a valid bearer token for the stream in the path.
func (a *authenticator) middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			httpx.Write(w, http.StatusUnauthorized, httpx.ErrUnauthorized)
			return
		}
		if err := a.verify(tokenString, mux.Vars(r)["id"]); err != nil {
			httpx.Write(w, http.StatusUnauthorized, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewToken issues an HS256 publisher token for streamID. An empty streamID grants every stream.
func NewToken(secret []byte, streamID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   streamID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
