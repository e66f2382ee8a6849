package security

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	idBytes     = 16
	apiKeyBytes = 32

	// APIKeyPrefix marks machine-to-machine credentials so they are
	// recognizable in logs and secret scanners.
	APIKeyPrefix = "pgc_"

	pbkdf2Iterations = 100_000
	pbkdf2KeyLength  = 64
	saltLength       = 16
	algorithmID      = "pbkdf2-sha512"
)

// GenerateSecureID returns a hex-encoded id with 16 bytes of entropy.
func GenerateSecureID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateAPIKey returns a prefixed random token for machine-to-machine auth.
func CreateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashPassword derives a PBKDF2-HMAC-SHA512 key (100k iterations, 64-byte
// key) from password under a fresh random per-user salt and encodes
// everything in a PHC-style string:
//
//	$pbkdf2-sha512$i=100000$<salt b64>$<key b64>
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLength, sha512.New)

	return fmt.Sprintf(
		"$%s$i=%d$%s$%s",
		algorithmID,
		pbkdf2Iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword re-derives the key from password and the encoded salt and
// compares it to the stored key in constant time. A malformed encoded hash
// is an error; a wrong password is (false, nil).
func VerifyPassword(password, encodedHash string) (bool, error) {
	iterations, salt, key, err := parseEncodedHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := pbkdf2.Key([]byte(password), salt, iterations, len(key), sha512.New)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func parseEncodedHash(encoded string) (int, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != algorithmID {
		return 0, nil, nil, errors.New("malformed password hash")
	}

	iterStr, ok := strings.CutPrefix(parts[2], "i=")
	if !ok {
		return 0, nil, nil, errors.New("malformed password hash")
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations < 1 {
		return 0, nil, nil, errors.New("malformed password hash")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, errors.New("malformed password hash")
	}

	key, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(key) == 0 {
		return 0, nil, nil, errors.New("malformed password hash")
	}

	return iterations, salt, key, nil
}
