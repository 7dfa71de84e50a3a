// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package ssh generates throwaway SSH public keys in authorized_keys format
// for exercising the key API.
package ssh

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// DefaultComment is appended to generated keys.
const DefaultComment = "Test Ssh Key"

// MinRSABits is the smallest RSA size the Go runtime will generate.
const MinRSABits = 1024

// GenerateRSAPublicKey creates a fresh RSA key pair and returns the public
// half as "ssh-rsa <base64> <comment>". The private half is discarded.
func GenerateRSAPublicKey(bits int, comment string) (string, error) {
	if bits < MinRSABits {
		return "", fmt.Errorf("rsa key size %d below minimum %d", bits, MinRSABits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate rsa key pair: %w", err)
	}
	return marshalPublic(priv.Public(), comment)
}

// GenerateEd25519PublicKey is the fast variant of GenerateRSAPublicKey.
func GenerateEd25519PublicKey(comment string) (string, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return marshalPublic(pub, comment)
}

func marshalPublic(pub crypto.PublicKey, comment string) (string, error) {
	sshPubKey, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to create SSH public key: %w", err)
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPubKey)))
	if comment == "" {
		return line, nil
	}
	return line + " " + comment, nil
}

// Generator produces public keys for new test fixtures.
type Generator interface {
	PublicKey() (string, error)
}

// RSAGenerator generates RSA keys of Bits size (2048 when zero).
type RSAGenerator struct {
	Bits    int
	Comment string
}

func (g RSAGenerator) PublicKey() (string, error) {
	bits := g.Bits
	if bits == 0 {
		bits = 2048
	}
	comment := g.Comment
	if comment == "" {
		comment = DefaultComment
	}
	return GenerateRSAPublicKey(bits, comment)
}

// Ed25519Generator generates ed25519 keys.
type Ed25519Generator struct {
	Comment string
}

func (g Ed25519Generator) PublicKey() (string, error) {
	comment := g.Comment
	if comment == "" {
		comment = DefaultComment
	}
	return GenerateEd25519PublicKey(comment)
}
