package lifecycle

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// no 0/O or 1/I so codes survive being read over the phone
const referenceCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referenceSuffixLen = 6

// Mints a code like TGG-2026-7KQ3XM. Uniqueness is enforced by the database.
func NewReferenceCode(prefix string, now time.Time) (string, error) {
	suffix := make([]byte, referenceSuffixLen)
	limit := big.NewInt(int64(len(referenceCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		suffix[i] = referenceCharset[n.Int64()]
	}

	return fmt.Sprintf("%s-%d-%s", prefix, now.UTC().Year(), suffix), nil
}
