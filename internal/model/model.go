// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"strings"
)

// KeyID is the identifier the provider assigns to a key at creation time.
// It is opaque to dokeys and never changes afterwards.
type KeyID string

// Key is an SSH key registered with the provider.
//
// ID and Fingerprint are assigned remotely, PublicKey is the material as
// supplied on creation. Only Name may change over the lifetime of a key.
type Key struct {
	ID          KeyID
	Fingerprint string
	Name        string
	PublicKey   string
}

// String returns "name (id, fingerprint)".
func (k Key) String() string {
	return fmt.Sprintf("%s (%s, %s)", k.Name, k.ID, k.Fingerprint)
}

// SameResource reports whether a and b are two observations of the same
// remote key. Name is deliberately left out: it differs across a rename.
func SameResource(a, b Key) bool {
	return a.ID == b.ID && a.Fingerprint == b.Fingerprint && a.PublicKey == b.PublicKey
}

// Contains reports whether keys holds an observation of k under any name.
func Contains(keys []Key, k Key) bool {
	return CountSameResource(keys, k) > 0
}

// ContainsExact reports whether keys holds k under k's own name.
func ContainsExact(keys []Key, k Key) bool {
	for _, c := range keys {
		if SameResource(c, k) && c.Name == k.Name {
			return true
		}
	}
	return false
}

// CountSameResource returns how many entries of keys are observations of k.
func CountSameResource(keys []Key, k Key) int {
	n := 0
	for _, c := range keys {
		if SameResource(c, k) {
			n++
		}
	}
	return n
}

// HasID reports whether any entry of keys carries id.
func HasID(keys []Key, id KeyID) bool {
	_, ok := FindByID(keys, id)
	return ok
}

func FindByID(keys []Key, id KeyID) (Key, bool) {
	for _, k := range keys {
		if k.ID == id {
			return k, true
		}
	}
	return Key{}, false
}

func FindByName(keys []Key, name string) (Key, bool) {
	for _, k := range keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// WithNamePrefix returns the keys whose name starts with prefix. An empty
// prefix matches nothing so a misconfigured cleanup cannot select every key.
func WithNamePrefix(keys []Key, prefix string) []Key {
	if prefix == "" {
		return nil
	}
	var out []Key
	for _, k := range keys {
		if strings.HasPrefix(k.Name, prefix) {
			out = append(out, k)
		}
	}
	return out
}
