package password

import "testing"

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("Expected password to be hashed")
	}
	if !CheckPasswordHash("correct horse", hash) {
		t.Fatal("Expected matching password to verify")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatal("Expected wrong password to fail")
	}
}
