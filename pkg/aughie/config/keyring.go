// Package config – keyring.go resolves credentials from the operating
// system's native keyring (Linux: Secret Service, macOS: Keychain,
// Windows: Credential Manager).
//
// Priority for resolving a secret:
//  1. Environment variable (including values loaded from .env)
//  2. OS keyring
//  3. config.yaml value (least secure, plaintext on disk)
package config

import (
	"os"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "aughie"

// TokenFor resolves a credential by name: environment first, then the
// OS keyring. Returns "" when neither has it.
func TokenFor(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	if v, err := keyring.Get(keyringService, key); err == nil {
		return v
	}
	return ""
}

// StoreToken saves a credential in the OS keyring.
func StoreToken(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// DeleteToken removes a credential from the OS keyring.
func DeleteToken(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable reports whether the OS keyring is usable, via a
// write and delete cycle with a throwaway key.
func KeyringAvailable() bool {
	const testKey = "__aughie_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}
