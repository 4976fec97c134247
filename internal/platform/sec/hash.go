// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// keyBytes is the entropy of a generated API key.
const keyBytes = 24

// GenerateAPIKey returns a random URL-safe API key.
func GenerateAPIKey() (string, error) {
	buffer := make([]byte, keyBytes)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashAPIKey hashes an API key using the bcrypt algorithm so that only the
// hash needs to live in the server configuration.
func HashAPIKey(plainTextKey string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextKey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash api key: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckAPIKeyHash compares a presented API key with its hashed version.
func CheckAPIKeyHash(plainTextKey, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextKey))
	return err == nil
}
