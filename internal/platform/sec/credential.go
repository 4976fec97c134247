// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides the crawler credential checks.
//
// # Architecture
//
// The API key is configured once at process start and injected into the
// middleware as a [CredentialVerifier]. Nothing reads it from global state
// per request.
package sec

import (
	"crypto/sha256"
	"crypto/subtle"
)

// Authentication methods recorded on a [Caller].
const (
	MethodAPIKey = "api_key"
	MethodToken  = "token"
)

// Caller identifies the crawler that made an authenticated request.
type Caller struct {
	Method  string
	Subject string
}

// CredentialVerifier reports whether a presented API key is valid.
//
// Implementations must compare in constant time.
type CredentialVerifier interface {
	Verify(presented string) bool
}

// # Static Key

// StaticKey verifies against a plain shared secret.
type StaticKey struct {
	digest [sha256.Size]byte
}

// NewStaticKey constructs a [StaticKey]. The secret is kept only as a digest
// so that comparisons run over fixed-length inputs.
func NewStaticKey(secret string) *StaticKey {
	return &StaticKey{digest: sha256.Sum256([]byte(secret))}
}

// Verify implements [CredentialVerifier].
func (key *StaticKey) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	presentedDigest := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(key.digest[:], presentedDigest[:]) == 1
}

// # Hashed Key

// HashedKey verifies against a bcrypt hash of the shared secret.
type HashedKey struct {
	hash string
}

// NewHashedKey constructs a [HashedKey] from a bcrypt hash.
func NewHashedKey(hash string) *HashedKey {
	return &HashedKey{hash: hash}
}

// Verify implements [CredentialVerifier].
func (key *HashedKey) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	return CheckAPIKeyHash(presented, key.hash)
}

// # Composition

// AnyOf accepts a key when any of the verifiers accepts it.
type AnyOf []CredentialVerifier

// Verify implements [CredentialVerifier]. Every verifier is consulted so the
// time taken does not reveal which one matched.
func (verifiers AnyOf) Verify(presented string) bool {
	matched := false
	for _, verifier := range verifiers {
		if verifier.Verify(presented) {
			matched = true
		}
	}
	return matched
}
