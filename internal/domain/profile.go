package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Storage bounds for the persisted profile, excluding the NUL terminator.
const (
	MaxNetworkNameLen = 31
	MaxSecretLen      = 63
)

// ErrIncompleteProfile is returned when a profile would be marked configured
// without both a network name and a secret.
var ErrIncompleteProfile = errors.New("network name and secret are required")

// NetworkProfile is the single WiFi profile the device can join.
type NetworkProfile struct {
	NetworkName string
	Secret      string
	Configured  bool
}

// NewNetworkProfile truncates both fields to their storage bounds and marks
// the result configured.
func NewNetworkProfile(name, secret string) (NetworkProfile, error) {
	p := NetworkProfile{
		NetworkName: TruncateBounded(name, MaxNetworkNameLen),
		Secret:      TruncateBounded(secret, MaxSecretLen),
	}
	if p.NetworkName == "" || p.Secret == "" {
		return NetworkProfile{}, ErrIncompleteProfile
	}
	p.Configured = true
	return p, nil
}

// Valid checks the configured invariant: both strings present and in bounds.
func (p NetworkProfile) Valid() bool {
	if !p.Configured {
		return true
	}
	return p.NetworkName != "" && p.Secret != "" &&
		len(p.NetworkName) <= MaxNetworkNameLen && len(p.Secret) <= MaxSecretLen &&
		!strings.ContainsRune(p.NetworkName, 0) && !strings.ContainsRune(p.Secret, 0)
}

// TruncateBounded cuts s at the first NUL and then to at most max bytes
// without splitting a UTF-8 sequence.
func TruncateBounded(s string, max int) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if len(s) <= max {
		return s
	}
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
