// Package auth builds Bitfinex WebSocket authentication payloads using HMAC-SHA384 signatures.
package auth

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strconv"
	"sync/atomic"
	"time"
)

// Errors
var (
	ErrMissingKey    = errors.New("API key is required")
	ErrMissingSecret = errors.New("API secret is required")
)

// Credentials holds the API key and secret used to authenticate upstream connections.
type Credentials struct {
	Key    string // API key from the Bitfinex dashboard
	Secret string // API secret for signing
}

// NewCredentials validates and returns credentials.
func NewCredentials(key, secret string) (*Credentials, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Credentials{Key: key, Secret: secret}, nil
}

// AuthMessage is the WebSocket auth event sent after the connection opens.
type AuthMessage struct {
	Event       string `json:"event"` // Always "auth"
	APIKey      string `json:"apiKey"`
	AuthSig     string `json:"authSig"`
	AuthPayload string `json:"authPayload"`
	AuthNonce   string `json:"authNonce"`
}

// lastNonce keeps nonces strictly increasing across all credentials in the process.
var lastNonce atomic.Int64

// nextNonce returns a microsecond timestamp that is larger than any previous one.
func nextNonce() int64 {
	for {
		prev := lastNonce.Load()
		n := time.Now().UnixMicro()
		if n <= prev {
			n = prev + 1
		}
		if lastNonce.CompareAndSwap(prev, n) {
			return n
		}
	}
}

// SignWebSocket builds a signed auth message with a fresh nonce.
func (c *Credentials) SignWebSocket() AuthMessage {
	nonce := strconv.FormatInt(nextNonce(), 10)
	payload := "AUTH" + nonce

	return AuthMessage{
		Event:       "auth",
		APIKey:      c.Key,
		AuthSig:     c.sign(payload),
		AuthPayload: payload,
		AuthNonce:   nonce,
	}
}

// sign returns the hex-encoded HMAC-SHA384 of payload keyed by the secret.
func (c *Credentials) sign(payload string) string {
	mac := hmac.New(sha512.New384, []byte(c.Secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
