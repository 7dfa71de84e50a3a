// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey parses authorized_keys style public key lines and derives
// the fingerprints the provider reports for them.
package sshkey

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ErrMalformed is returned for lines that are not a usable public key.
var ErrMalformed = errors.New("malformed public key")

// Parse splits a raw public key string (like one from an authorized_keys file)
// into its three core components: algorithm, key data, and comment.
// Leading options (from="...",command="...") are skipped.
func Parse(rawKey string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(rawKey)
	if len(fields) == 0 {
		err = fmt.Errorf("%w: empty line", ErrMalformed)
		return
	}

	keyStartIndex := -1
	for i, field := range fields {
		if strings.HasPrefix(field, "ssh-") || strings.HasPrefix(field, "ecdsa-") || strings.HasPrefix(field, "sk-") {
			keyStartIndex = i
			break
		}
	}

	if keyStartIndex == -1 {
		err = fmt.Errorf("%w: no valid SSH key type found in line", ErrMalformed)
		return
	}

	if len(fields) < keyStartIndex+2 {
		err = fmt.Errorf("%w: missing key data after algorithm", ErrMalformed)
		return
	}

	algorithm = fields[keyStartIndex]
	keyData = fields[keyStartIndex+1]
	if len(fields) > keyStartIndex+2 {
		comment = strings.Join(fields[keyStartIndex+2:], " ")
	}

	return
}

// Validate decodes the key material and returns the parsed key.
func Validate(rawKey string) (ssh.PublicKey, error) {
	if _, _, _, err := Parse(rawKey); err != nil {
		return nil, err
	}
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(rawKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return pk, nil
}

// Fingerprint returns the colon separated MD5 fingerprint of rawKey, the
// form DigitalOcean uses to address keys.
func Fingerprint(rawKey string) (string, error) {
	pk, err := Validate(rawKey)
	if err != nil {
		return "", err
	}
	return ssh.FingerprintLegacyMD5(pk), nil
}

// FingerprintSHA256 returns the "SHA256:..." fingerprint printed by ssh-keygen.
func FingerprintSHA256(rawKey string) (string, error) {
	pk, err := Validate(rawKey)
	if err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(pk), nil
}
