// Package crypto seals provider API keys before they reach the settings store.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type sealed struct {
	KeyID      string `json:"key_id"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Keyring holds 32-byte AES keys by id. New secrets are sealed with the
// current key; any key in the ring can open.
type Keyring struct {
	currentKeyID string
	keys         map[string]cipher.AEAD
}

func NewKeyring(currentKeyID string, keys map[string][]byte) (*Keyring, error) {
	if currentKeyID == "" {
		return nil, fmt.Errorf("current key id is empty")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keys map is empty")
	}
	if _, ok := keys[currentKeyID]; !ok {
		return nil, fmt.Errorf("current key id %q not found", currentKeyID)
	}
	aeads := make(map[string]cipher.AEAD, len(keys))
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("key %q must be 32 bytes", id)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("key %q: new cipher: %w", id, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("key %q: new gcm: %w", id, err)
		}
		aeads[id] = aead
	}
	return &Keyring{currentKeyID: currentKeyID, keys: aeads}, nil
}

// Seal encrypts secret and returns a JSON envelope safe to persist.
func (k *Keyring) Seal(secret string) (string, error) {
	aead := k.keys[k.currentKeyID]
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	b, err := json.Marshal(sealed{
		KeyID:      k.currentKeyID,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, []byte(secret), nil)),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(b), nil
}

func (k *Keyring) Open(raw string) (string, error) {
	env, err := parse(raw)
	if err != nil {
		return "", err
	}
	aead, ok := k.keys[env.KeyID]
	if !ok {
		return "", fmt.Errorf("unknown key id %q", env.KeyID)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Reseal re-encrypts raw under the current key. Envelopes already on the
// current key are returned unchanged.
func (k *Keyring) Reseal(raw string) (string, bool, error) {
	env, err := parse(raw)
	if err != nil {
		return "", false, err
	}
	if env.KeyID == k.currentKeyID {
		return raw, false, nil
	}
	plain, err := k.Open(raw)
	if err != nil {
		return "", false, err
	}
	out, err := k.Seal(plain)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

// Mask keeps the last four characters of a secret for display.
func Mask(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	r := []rune(secret)
	if len(r) <= 4 {
		return strings.Repeat("•", len(r))
	}
	return strings.Repeat("•", 8) + string(r[len(r)-4:])
}

func parse(raw string) (sealed, error) {
	var env sealed
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return sealed{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}
