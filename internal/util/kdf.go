package util

import (
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/unicode/norm"
)

type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

// DeriveArgon2idKey derives a sealing key from a device secret. The secret is
// NFKD-normalized first so the same logical secret always derives the same key.
func DeriveArgon2idKey(secret string, salt []byte, params Argon2idParams) ([]byte, error) {
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("argon2id key length must be 32 bytes")
	}
	normalized := norm.NFKD.String(secret)
	return argon2.IDKey([]byte(normalized), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen), nil
}
