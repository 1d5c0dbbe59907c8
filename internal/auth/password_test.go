package auth_test

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/mstelder/authd/internal/auth"
	"github.com/mstelder/authd/internal/krypto"
)

func Test_Password_ParseHashMatch(t *testing.T) {
	okTests := map[string]string{
		"minimum length": "12345678",
		"typical":        "reallyStrongPassword1",
		"passphrase":     "correct horse battery staple",
		"non-ascii":      "wachtwóórd🥸",
		"maximum length": stringOfLen(512),
	}

	for name, raw := range okTests {
		t.Run(name, func(t *testing.T) {
			pwd, err := auth.ParsePassword(raw)
			if err != nil {
				t.Fatalf("failed to parse password: %v", err)
			}

			hash, err := pwd.Hash()
			if err != nil {
				t.Fatalf("failed to hash password: %v", err)
			}

			// We can't compare the resulting hash to a known value, because of the random salt,
			// so we check if the password matches its own hash instead.
			if !pwd.Match(hash) {
				t.Errorf("password\n%s\ndoes not match own hash\n%+v", raw, hash)
			}
		})
	}

	t.Run("ok, password does not match hash", func(t *testing.T) {
		pwd, err := auth.ParsePassword("reallyStrongPassword1")
		if err != nil {
			t.Fatalf("failed to parse password: %v", err)
		}

		hash, err := pwd.Hash()
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}

		other, err := auth.ParsePassword("reallyStrongPassword2")
		if err != nil {
			t.Fatalf("failed to parse password: %v", err)
		}

		if other.Match(hash) {
			t.Errorf("password\n%s\nshould not match hash\n%+v", other, hash)
		}
	})

	t.Run("ok, password matches hash with different settings", func(t *testing.T) {
		// Taken these settings from the tests in the argon2 package.
		hash := krypto.Argon2Hash{
			Variant:     "argon2id",
			Version:     19,
			MemoryKiB:   64,
			Iterations:  1,
			Parallelism: 1,
			Salt:        []byte("somesalt"),
			Hash:        mustHexDecodeString(t, "655ad15eac652dc59f7170a7332bf49b8469be1fdb9c28bb"),
		}

		pwd, err := auth.ParsePassword("password")
		if err != nil {
			t.Fatalf("failed to parse password: %v", err)
		}

		if !pwd.Match(hash) {
			t.Errorf("password\n%s\ndoes not match hash\n%+v", pwd, hash)
		}
	})

	failParsing := map[string]string{
		"empty":     "",
		"too short": "1234567",
		"too long":  stringOfLen(513),
	}

	for name, raw := range failParsing {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParsePassword(raw)
			if err == nil {
				t.Errorf("expected error, got nil")
			}
		})
	}
}

func Test_Password_PreventExposure(t *testing.T) {
	raw := "12345678"
	pwd, err := auth.ParsePassword(raw)
	if err != nil {
		t.Fatalf("failed to parse password: %v", err)
	}

	assert := func(t *testing.T, s string) {
		t.Helper()
		if s != krypto.SecretMarker {
			t.Errorf("wanted\n%s\ngot\n%s\n", krypto.SecretMarker, s)
		}

		if strings.Contains(s, raw) {
			t.Errorf("did not expect output to contain the plaintext password")
		}
	}

	t.Run("ok, format", func(t *testing.T) {
		for _, verb := range []string{"%v", "%s", "%d", "%#v"} {
			assert(t, fmt.Sprintf(verb, pwd))
		}
	})

	t.Run("ok, marshal text", func(t *testing.T) {
		got, err := pwd.MarshalText()
		if err != nil {
			t.Fatalf("failed to marshal text: %v", err)
		}

		if !bytes.Equal(got, []byte(krypto.SecretMarker)) {
			assert(t, string(got))
		}
	})
}

func stringOfLen(n int) string {
	return strings.Repeat("a", n)
}

func mustHexDecodeString(t *testing.T, str string) []byte {
	t.Helper()

	b, err := hex.DecodeString(str)
	if err != nil {
		t.Fatalf("failed to decode hex string: %v", err)
	}

	return b
}
