package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/notesync/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

// Hashes use passlib's pbkdf2_sha256 modular crypt format:
//
//	$pbkdf2-sha256$<rounds>$<salt>$<checksum>
//
// with salt and checksum in passlib's "adapted base64" (. instead of +, no
// padding), so existing user tables keep working.
const (
	pbkdf2Ident   = "pbkdf2-sha256"
	DefaultRounds = 29000
	saltSize      = 16
	checksumSize  = 32
	minRounds     = 1
	maxRounds     = 1<<32 - 1
)

var ab64 = base64.RawStdEncoding

func ab64Encode(b []byte) string {
	return strings.ReplaceAll(ab64.EncodeToString(b), "+", ".")
}

func ab64Decode(s string) ([]byte, error) {
	return ab64.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

// HashPassword hashes password with a fresh random salt.
func HashPassword(password string) (string, error) {
	return hashWithRounds(password, DefaultRounds)
}

func hashWithRounds(password string, rounds int) (string, error) {
	salt := common.GenerateRandByteArray(saltSize)
	sum := pbkdf2.Key([]byte(password), salt, rounds, checksumSize, sha256.New)
	return fmt.Sprintf("$%s$%d$%s$%s", pbkdf2Ident, rounds, ab64Encode(salt), ab64Encode(sum)), nil
}

// VerifyPassword reports whether password matches hash. A malformed hash is
// an error, a wrong password is not.
func VerifyPassword(password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != pbkdf2Ident {
		return false, fmt.Errorf("unsupported password hash format")
	}

	rounds, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || rounds < minRounds || rounds > maxRounds {
		return false, fmt.Errorf("invalid pbkdf2 rounds %q", parts[2])
	}
	salt, err := ab64Decode(parts[3])
	if err != nil {
		return false, fmt.Errorf("invalid pbkdf2 salt: %w", err)
	}
	want, err := ab64Decode(parts[4])
	if err != nil || len(want) == 0 {
		return false, fmt.Errorf("invalid pbkdf2 checksum")
	}

	got := pbkdf2.Key([]byte(password), salt, int(rounds), len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
