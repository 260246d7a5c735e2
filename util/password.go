package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2PrefixV1 marks hashes produced by HashPasswordArgon2.
const Argon2PrefixV1 = "argon2id$"

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

var ErrEmptySalt = errors.New("password salt is empty")

var (
	jwtSecretValue = getEnv("JWTSECRET", "")
	jwtSecret      = jwtSecretValue
	jwtSecretByte  = []byte(jwtSecretValue)
	jwtMutex       sync.RWMutex
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

// HashPassword is the legacy HMAC-SHA256 hash keyed with the JWT secret. It is
// only used to verify accounts created before Argon2 hashing.
func HashPassword(password string) (hashedPassword string) {
	secretByte := GetJWTSecretByte()
	h := hmac.New(sha256.New, secretByte)
	h.Write([]byte(password))
	hashedPassword = hex.EncodeToString(h.Sum(nil))
	return
}

// GenerateSalt returns a random base64 encoded salt.
func GenerateSalt() (string, error) {
	b := make([]byte, saltLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

// HashPasswordArgon2 derives an argon2id key from password and salt.
func HashPasswordArgon2(password, salt string) (string, error) {
	if salt == "" {
		return "", ErrEmptySalt
	}
	key := argon2.IDKey([]byte(password), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen)
	return Argon2PrefixV1 + base64.RawStdEncoding.EncodeToString(key), nil
}

// VerifyPassword compares plain against a stored hash. Argon2 hashes are
// recomputed with the stored salt; anything else is treated as a legacy HMAC hash.
func VerifyPassword(plain, stored, salt string) (bool, error) {
	if strings.HasPrefix(stored, Argon2PrefixV1) {
		computed, err := HashPasswordArgon2(plain, salt)
		if err != nil {
			return false, err
		}
		return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1, nil
	}
	legacy := HashPassword(plain)
	return subtle.ConstantTimeCompare([]byte(legacy), []byte(stored)) == 1, nil
}

// SetJWTSecret allows tests or runtime code to update the JWT secret used
// for both token signing and password hashing. This function is thread-safe
// and can be called concurrently. Tests using this should avoid parallel execution
// if they need deterministic secret values.
func SetJWTSecret(secret string) {
	jwtMutex.Lock()
	defer jwtMutex.Unlock()
	jwtSecret = secret
	jwtSecretByte = []byte(secret)
}

// GetJWTSecret returns the current JWT secret.
func GetJWTSecret() string {
	jwtMutex.RLock()
	defer jwtMutex.RUnlock()
	return jwtSecret
}

// GetJWTSecretByte returns a copy of the current JWT secret bytes in a thread-safe manner.
func GetJWTSecretByte() []byte {
	jwtMutex.RLock()
	defer jwtMutex.RUnlock()
	return append([]byte(nil), jwtSecretByte...)
}
