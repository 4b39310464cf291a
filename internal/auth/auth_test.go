package auth

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestNewCredentials(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		secret  string
		wantErr error
	}{
		{"both set", "k", "s", nil},
		{"missing key", "", "s", ErrMissingKey},
		{"missing secret", "k", "", ErrMissingSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := NewCredentials(tt.key, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (creds.Key != tt.key || creds.Secret != tt.secret) {
				t.Errorf("creds = %+v", creds)
			}
		})
	}
}

func TestCredentials_SignWebSocket(t *testing.T) {
	creds := &Credentials{Key: "ws-key", Secret: "ws-secret"}

	msg := creds.SignWebSocket()

	if msg.Event != "auth" {
		t.Errorf("Event = %q, want %q", msg.Event, "auth")
	}
	if msg.APIKey != "ws-key" {
		t.Errorf("APIKey = %q, want %q", msg.APIKey, "ws-key")
	}
	if msg.AuthNonce == "" {
		t.Fatal("AuthNonce is empty")
	}
	if msg.AuthPayload != "AUTH"+msg.AuthNonce {
		t.Errorf("AuthPayload = %q, want AUTH%s", msg.AuthPayload, msg.AuthNonce)
	}

	mac := hmac.New(sha512.New384, []byte("ws-secret"))
	mac.Write([]byte(msg.AuthPayload))
	want := hex.EncodeToString(mac.Sum(nil))
	if msg.AuthSig != want {
		t.Errorf("AuthSig = %q, want %q", msg.AuthSig, want)
	}

	// SHA-384 hex digest is 96 characters.
	if len(msg.AuthSig) != 96 || strings.ToLower(msg.AuthSig) != msg.AuthSig {
		t.Errorf("AuthSig is not lowercase hex sha384: %q", msg.AuthSig)
	}
}

func TestNonceStrictlyIncreasing(t *testing.T) {
	creds := &Credentials{Key: "k", Secret: "s"}
	prev := ""

	for i := 0; i < 1000; i++ {
		n := creds.SignWebSocket().AuthNonce
		if prev != "" && (len(n) < len(prev) || (len(n) == len(prev) && n <= prev)) {
			t.Fatalf("nonce %s not greater than %s", n, prev)
		}
		prev = n
	}
}
