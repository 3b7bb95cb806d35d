package authn

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"insurelane/pkg/domain"
)

// identityLen is the hex length of a derived ledger address.
const identityLen = 40

// IdentityFromToken derives the caller's ledger address from a bearer token.
// The mapping is one-way and deterministic: the token never leaves the
// transport layer, and the same token always resolves to the same address.
func IdentityFromToken(token string) domain.Identity {
	sum := sha256.Sum256([]byte(token))
	return domain.Identity("acct_" + hex.EncodeToString(sum[:])[:identityLen])
}

// CallerFromRequest resolves the calling identity from the Authorization
// header. Missing or malformed credentials fail with ErrUnauthorized.
func CallerFromRequest(r *http.Request) (domain.Identity, error) {
	token, ok := parseBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", domain.ErrUnauthorized
	}
	return IdentityFromToken(token), nil
}

func parseBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
