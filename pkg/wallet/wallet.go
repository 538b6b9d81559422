/*
Package wallet reads Solana key pairs from local files.

A key pair file is the one produced by solana-keygen: a JSON array of the 64
secret key bytes (32 bytes of ed25519 seed followed by 32 bytes of public key).
A single base58 string of the same 64 bytes is accepted too.
*/
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
)

// ErrInvalidKey is returned for key data that is not a valid ed25519 key pair.
var ErrInvalidKey = errors.New("invalid key pair")

// LoadKeyPairFromFile reads the key pair stored at path. Any failure is
// reported as fault.ErrFile with the path included.
func LoadKeyPairFromFile(path string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.File(err, "failed to read key pair at '%s'", path)
	}
	key, err := ParseKeyPair(data)
	if err != nil {
		return nil, fault.File(err, "failed to parse key pair at '%s'", path)
	}
	return key, nil
}

// ParseKeyPair decodes key pair file contents.
func ParseKeyPair(data []byte) (solana.PrivateKey, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	var raw []byte
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
	} else {
		k, err := solana.PrivateKeyFromBase58(string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		raw = k
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(raw))
	}
	// The trailing half must be the public key of the leading seed.
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived, raw) {
		return nil, fmt.Errorf("%w: public key doesn't match secret key", ErrInvalidKey)
	}
	return solana.PrivateKey(raw), nil
}

// NewEphemeral generates a fresh random key pair that lives only in memory.
func NewEphemeral() (solana.PrivateKey, error) {
	return solana.NewRandomPrivateKey()
}

// Marshal encodes the key the way solana-keygen does.
func Marshal(key solana.PrivateKey) []byte {
	nums := make([]int, len(key))
	for i, b := range key {
		nums[i] = int(b)
	}
	data, _ := json.Marshal(nums)
	return data
}
