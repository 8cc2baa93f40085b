package cryptoutil

import (
	"bytes"
	"testing"
)

func TestDeriveAndVerifyPassword(t *testing.T) {
	hash, salt, err := DerivePassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to derive password: %v", err)
	}
	if len(hash) == 0 || len(salt) == 0 {
		t.Fatal("expected non-empty hash and salt")
	}

	if !VerifyPassword("correct horse battery staple", hash, salt) {
		t.Error("expected correct password to verify")
	}
	if VerifyPassword("wrong password", hash, salt) {
		t.Error("expected wrong password to fail")
	}
	if VerifyPassword("correct horse battery staple", nil, nil) {
		t.Error("expected missing credential material to fail")
	}
}

func TestDerivePasswordSaltsDiffer(t *testing.T) {
	hash1, salt1, err := DerivePassword("same password")
	if err != nil {
		t.Fatalf("failed to derive password: %v", err)
	}
	hash2, salt2, err := DerivePassword("same password")
	if err != nil {
		t.Fatalf("failed to derive password: %v", err)
	}

	if bytes.Equal(salt1, salt2) {
		t.Error("expected fresh salt per derivation")
	}
	if bytes.Equal(hash1, hash2) {
		t.Error("expected different hashes for different salts")
	}
}

func TestRandomAndID(t *testing.T) {
	token1, err := Random()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	token2, err := Random()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if token1 == token2 {
		t.Error("expected distinct tokens")
	}
	if ID(token1) != ID(token1) {
		t.Error("expected ID to be deterministic")
	}
	if ID(token1) == ID(token2) {
		t.Error("expected distinct ids for distinct tokens")
	}
}
