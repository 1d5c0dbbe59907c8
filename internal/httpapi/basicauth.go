package httpapi

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/mstelder/authd/internal/krypto"
)

const basicPrefix = "Basic "

// ParseBasicAuth extracts the identifier and secret from a Basic
// authorization header value. The secret is wrapped so it doesn't
// accidentally end up in logs.
//
// It reports ok as false when the header doesn't carry the Basic scheme,
// the payload is not valid base64, the decoded payload is not valid UTF-8
// or it doesn't contain a colon. The secret may itself contain colons,
// only the first one separates identifier and secret.
func ParseBasicAuth(header string) (identifier string, secret krypto.Secret, ok bool) {
	if !strings.HasPrefix(header, basicPrefix) {
		return "", krypto.Secret{}, false
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(basicPrefix):])
	if err != nil {
		return "", krypto.Secret{}, false
	}

	if !utf8.Valid(decoded) {
		return "", krypto.Secret{}, false
	}

	identifier, raw, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", krypto.Secret{}, false
	}

	return identifier, krypto.NewSecret(raw), true
}
