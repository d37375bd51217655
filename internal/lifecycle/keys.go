package lifecycle

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	publicKeyLength  = 16
	publicKeyChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	storageKeyPrefix = "files/"
)

// newPublicKey returns the shareable identifier handed to end users.
func newPublicKey() (string, error) {
	bound := big.NewInt(int64(len(publicKeyChars)))
	key := make([]byte, publicKeyLength)
	for i := range key {
		n, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", err
		}
		key[i] = publicKeyChars[n.Int64()]
	}
	return string(key), nil
}

// newStorageKey never contains user input so two uploads cannot collide.
func newStorageKey(now time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%s", storageKeyPrefix, now.Year(), int(now.Month()), uuid.NewString())
}

// HashLockKey returns the hex SHA-256 digest stored for a lock secret.
func HashLockKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyLockKey compares digests, never the secret itself.
func VerifyLockKey(secret, storedHash string) bool {
	provided := HashLockKey(secret)
	if len(provided) != len(storedHash) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(storedHash)) == 1
}
