// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"errors"
	"strings"
	"testing"

	gen "github.com/flavienbert/digitalocean/internal/crypto/ssh"
)

func TestParse_NormalLine(t *testing.T) {
	line := "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQC3 test-key@example.com"
	alg, key, comment, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if alg != "ssh-rsa" {
		t.Fatalf("unexpected alg: %s", alg)
	}
	if key == "" {
		t.Fatalf("empty key data")
	}
	if comment != "test-key@example.com" {
		t.Fatalf("unexpected comment: %s", comment)
	}
}

func TestParse_WithOptions(t *testing.T) {
	line := "no-agent-forwarding,command=\"echo hi\" ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIBk Test Ssh Key"
	alg, _, comment, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if alg != "ssh-ed25519" {
		t.Fatalf("unexpected alg: %s", alg)
	}
	if comment != "Test Ssh Key" {
		t.Fatalf("unexpected comment: %s", comment)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, line := range []string{"", "just-some-text", "ssh-rsa"} {
		if _, _, _, err := Parse(line); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q): expected ErrMalformed, got %v", line, err)
		}
	}
}

func TestValidate_RejectsGarbageData(t *testing.T) {
	if _, err := Validate("ssh-rsa bm90LWEta2V5 comment"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFingerprints(t *testing.T) {
	pub, err := gen.GenerateEd25519PublicKey("fp-test")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	md5, err := Fingerprint(pub)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if parts := strings.Split(md5, ":"); len(parts) != 16 {
		t.Fatalf("expected 16 colon separated bytes, got %q", md5)
	}

	// renaming the comment must not change the fingerprint
	fields := strings.Fields(pub)
	again, err := Fingerprint(fields[0] + " " + fields[1] + " other-comment")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if again != md5 {
		t.Fatalf("fingerprint depends on comment: %q vs %q", md5, again)
	}

	sha, err := FingerprintSHA256(pub)
	if err != nil {
		t.Fatalf("FingerprintSHA256: %v", err)
	}
	if !strings.HasPrefix(sha, "SHA256:") {
		t.Fatalf("unexpected sha256 fingerprint %q", sha)
	}
}
