package httpapi_test

import (
	"encoding/base64"
	"testing"

	"github.com/mstelder/authd/internal/httpapi"
)

func Test_ParseBasicAuth(t *testing.T) {
	okTests := map[string]struct {
		header     string
		identifier string
		secret     string
	}{
		"typical": {
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte("alice@example.com:hunter22")),
			identifier: "alice@example.com",
			secret:     "hunter22",
		},
		"secret contains colons": {
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte("alice@example.com:pass:word:123")),
			identifier: "alice@example.com",
			secret:     "pass:word:123",
		},
		"empty secret": {
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte("alice@example.com:")),
			identifier: "alice@example.com",
			secret:     "",
		},
		"empty identifier": {
			header:     "Basic " + base64.StdEncoding.EncodeToString([]byte(":hunter22")),
			identifier: "",
			secret:     "hunter22",
		},
	}

	for name, tc := range okTests {
		t.Run(name, func(t *testing.T) {
			identifier, secret, ok := httpapi.ParseBasicAuth(tc.header)
			if !ok {
				t.Fatalf("expected header to parse")
			}

			if identifier != tc.identifier {
				t.Errorf("got identifier %q, want %q", identifier, tc.identifier)
			}

			if got := string(secret.SecretValue()); got != tc.secret {
				t.Errorf("got secret %q, want %q", got, tc.secret)
			}
		})
	}

	failTests := map[string]string{
		"empty":                 "",
		"wrong scheme":          "Bearer abcdef",
		"missing space":         "Basic" + base64.StdEncoding.EncodeToString([]byte("a:b")),
		"lowercase scheme":      "basic " + base64.StdEncoding.EncodeToString([]byte("a:b")),
		"not base64":            "Basic !!!not-base64!!!",
		"no colon":              "Basic " + base64.StdEncoding.EncodeToString([]byte("alice@example.com")),
		"invalid utf8":          "Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, ':', 'b'}),
		"payload only prefixed": "Basic ",
	}

	for name, header := range failTests {
		t.Run("fail, "+name, func(t *testing.T) {
			_, _, ok := httpapi.ParseBasicAuth(header)
			if ok {
				t.Errorf("expected header %q not to parse", header)
			}
		})
	}
}
