package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is counted in characters, as the error message says.
	MinPasswordLength = 6
	// MaxPasswordLength is bcrypt's input limit, counted in bytes.
	MaxPasswordLength = 72

	// apiTokenBytes is the entropy of an API token; the token itself is its
	// hex encoding.
	apiTokenBytes = 32
	// csrfKeyBytes is the key size gorilla/csrf requires.
	csrfKeyBytes = 32
)

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPasswordTooShort = errors.New("password should be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length of 72 bytes")
)

// ValidatePassword applies the sign-up rules: at least six characters and
// no more than bcrypt can hash. A six-character password may therefore be
// fewer than six bytes long, or more.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword validates password and returns its bcrypt hash.
func HashPassword(password string, cost int) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a password with its hash.
func CheckPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidPassword
	}
	return err
}

// GenerateAPIToken creates the bearer token handed out at sign-in. Only the
// hash is stored; the plaintext goes to the client once.
func GenerateAPIToken() (plaintext string, hash string, err error) {
	raw := make([]byte, apiTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plaintext = hex.EncodeToString(raw)
	return plaintext, HashToken(plaintext), nil
}

// HashToken creates a SHA-256 hash of an API token for secure storage.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// wellFormedToken reports whether token could have come from
// GenerateAPIToken, so garbage never reaches the database.
func wellFormedToken(token string) bool {
	if len(token) != hex.EncodedLen(apiTokenBytes) {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// GenerateCSRFKey creates a random key for the CSRF middleware when none is
// configured.
func GenerateCSRFKey() ([]byte, error) {
	key := make([]byte, csrfKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
