package corpus

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest holds both hashes of a serialized corpus.
type Digest struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// HashBytes computes the SHA-256 and BLAKE3 hashes of data.
func HashBytes(data []byte) Digest {
	s := sha256.Sum256(data)
	b3 := blake3.Sum256(data)
	return Digest{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b3[:]),
	}
}

// Blake3Hex returns the hex BLAKE3 hash of data.
func Blake3Hex(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Hash serializes the corpus with Marshal and hashes the result, so two
// corpora hash alike exactly when they serialize alike.
func Hash(c *Corpus) (Digest, error) {
	data, err := Marshal(c)
	if err != nil {
		return Digest{}, err
	}
	return HashBytes(data), nil
}
