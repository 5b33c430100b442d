package utils

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", DefaultBcryptCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in the clear")
	}
	if !VerifyPassword(hash, "hunter22") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "hunter23") {
		t.Fatal("wrong password accepted")
	}
}

func TestHashPasswordClampsCost(t *testing.T) {
	// Out-of-range costs fall back to a sane value instead of erroring.
	for _, cost := range []int{-1, 0, 99} {
		hash, err := HashPassword("pw", cost)
		if err != nil {
			t.Fatalf("cost %d: %v", cost, err)
		}
		if !VerifyPassword(hash, "pw") {
			t.Fatalf("cost %d: verification failed", cost)
		}
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, err := HashPassword("same-password", DefaultBcryptCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := HashPassword("same-password", DefaultBcryptCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password are identical")
	}
}
