package queue

import "github.com/google/uuid"

const (
	idLength   = 12
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewID returns a 12-character lowercase base36 identifier drawn from the
// random bytes of a version 4 UUID. Bytes 6 and 8 carry the version and
// variant bits and are skipped, leaving roughly 60 bits of entropy.
func NewID() string {
	u := uuid.New()
	buf := make([]byte, 0, idLength)
	for i, b := range u {
		if i == 6 || i == 8 {
			continue
		}
		buf = append(buf, idAlphabet[int(b)%len(idAlphabet)])
		if len(buf) == idLength {
			break
		}
	}
	return string(buf)
}

// ValidID reports whether id is safe to use as a record name.
func ValidID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
