package util

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	MinTokenLength     = 8
	MaxTokenLength     = 32
	DefaultTokenLength = MaxTokenLength

	hintLength = 4
)

// NormalizeTokenLength falls back to DefaultTokenLength outside the allowed range.
func NormalizeTokenLength(length int) int {
	if length < MinTokenLength || length > MaxTokenLength {
		return DefaultTokenLength
	}
	return length
}

// GenerateToken returns a URL-safe random token of exactly length characters.
func GenerateToken(length int) (string, error) {
	bytes := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}

// Hint returns the last characters of a secret shown in masked views.
func Hint(secret string) string {
	runes := []rune(secret)
	if len(runes) <= hintLength {
		return string(runes)
	}
	return string(runes[len(runes)-hintLength:])
}
