package krypto_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/mstelder/authd/internal/krypto"
)

func Test_Secret_PreventExposure(t *testing.T) {
	secret := krypto.NewSecret("hunter2")

	t.Run("ok, format", func(t *testing.T) {
		got := fmt.Sprintf("%v %s %d %#v", secret, secret, secret, secret)

		want := "<!SECRET_REDACTED!> <!SECRET_REDACTED!> <!SECRET_REDACTED!> <!SECRET_REDACTED!>"
		if got != want {
			t.Errorf("got\n%s\nwant\n%s\n", got, want)
		}
	})

	t.Run("ok, marshal text", func(t *testing.T) {
		got, err := secret.MarshalText()
		if err != nil {
			t.Fatalf("failed to marshal text: %v", err)
		}

		want := []byte("<!SECRET_REDACTED!>")
		if !bytes.Equal(got, want) {
			t.Errorf("got\n%s\nwant\n%s\n", got, want)
		}
	})
}

func Test_Secret_SecretValue(t *testing.T) {
	secret := krypto.NewSecret("hunter2")

	got := secret.SecretValue()
	want := []byte("hunter2")
	if !bytes.Equal(got, want) {
		t.Errorf("got\n%s\nwant\n%s\n", got, want)
	}
}
