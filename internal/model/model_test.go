// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "testing"

var base = Key{ID: "512190", Fingerprint: "3b:16:bf:e4", Name: "Test-42", PublicKey: "ssh-rsa AAAA Test Ssh Key"}

func TestSameResourceIgnoresName(t *testing.T) {
	renamed := base
	renamed.Name = "Test-42Updated"
	if !SameResource(base, renamed) {
		t.Fatalf("rename must not change identity")
	}

	cases := map[string]func(k *Key){
		"id":          func(k *Key) { k.ID = "1" },
		"fingerprint": func(k *Key) { k.Fingerprint = "00:00" },
		"public key":  func(k *Key) { k.PublicKey = "ssh-rsa BBBB" },
	}
	for name, mutate := range cases {
		other := base
		mutate(&other)
		if SameResource(base, other) {
			t.Errorf("differing %s must break identity", name)
		}
	}
}

func TestContainsAndExact(t *testing.T) {
	renamed := base
	renamed.Name = "Test-42Updated"
	keys := []Key{{ID: "1", Name: "other"}, renamed}

	if !Contains(keys, base) {
		t.Fatalf("Contains should match the renamed observation")
	}
	if ContainsExact(keys, base) {
		t.Fatalf("ContainsExact must not match under the old name")
	}
	if !ContainsExact(keys, renamed) {
		t.Fatalf("ContainsExact should match under the new name")
	}
	if got := CountSameResource(append(keys, base), base); got != 2 {
		t.Fatalf("expected 2 observations, got %d", got)
	}
}

func TestFinders(t *testing.T) {
	keys := []Key{{ID: "1", Name: "a"}, base}

	if k, ok := FindByID(keys, base.ID); !ok || k.Name != base.Name {
		t.Fatalf("FindByID: got %v %v", k, ok)
	}
	if _, ok := FindByID(keys, "404"); ok {
		t.Fatalf("FindByID found an unknown id")
	}
	if k, ok := FindByName(keys, "a"); !ok || k.ID != "1" {
		t.Fatalf("FindByName: got %v %v", k, ok)
	}
	if !HasID(keys, "1") || HasID(keys, "2") {
		t.Fatalf("HasID mismatch")
	}
}

func TestWithNamePrefix(t *testing.T) {
	keys := []Key{{Name: "Test-a"}, {Name: "prod"}, {Name: "Test-b"}}
	if got := WithNamePrefix(keys, "Test-"); len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	if got := WithNamePrefix(keys, ""); got != nil {
		t.Fatalf("empty prefix must match nothing, got %v", got)
	}
}

func TestKeyString(t *testing.T) {
	if got, want := base.String(), "Test-42 (512190, 3b:16:bf:e4)"; got != want {
		t.Errorf("unexpected Key.String(): got %q want %q", got, want)
	}
}
