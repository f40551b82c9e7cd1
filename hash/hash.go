package hash

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
)

type Hash struct {
	hash hash.Hash
}

func NewHash(hash hash.Hash) *Hash {
	return &Hash{
		hash: hash,
	}
}

func (h *Hash) Key() string {
	return hex.EncodeToString(h.hash.Sum(nil))
}

func (h *Hash) Write(args ...[]byte) error {
	for _, arg := range args {
		_, err := h.hash.Write(arg)
		if err != nil {
			return err
		}
	}

	return nil
}

// LockID derives a Postgres advisory lock identifier from the digest.
// The top bit is masked off so the value fits the positive range of an int64,
// avoiding out-of-range conversions on the database side.
func (h *Hash) LockID() int64 {
	sum := h.hash.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) & 0x7FFFFFFFFFFFFFFF)
}
