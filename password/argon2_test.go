package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("encoded = %q", encoded)
	}

	ok, err := h.Verify("correct-horse", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = h.Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := testHasher(t)

	a, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("identical hashes for the same password")
	}
}

func TestVerifyOldCostParameters(t *testing.T) {
	// hashes carry their own parameters, so a hasher with a newer profile
	// still verifies hashes produced under the old one
	old := testHasher(t)
	encoded, err := old.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	current, err := NewHasher(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	ok, err := current.Verify("correct-horse", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("old hash rejected by new profile")
	}
}

func TestShortPasswordRejected(t *testing.T) {
	h := testHasher(t)
	if _, err := h.Hash("short"); err == nil {
		t.Fatal("short password accepted")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := testHasher(t)
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5",
	} {
		if _, err := h.Verify("whatever", encoded); err == nil {
			t.Fatalf("malformed hash accepted: %q", encoded)
		}
	}
}

func TestHasherConfigValidation(t *testing.T) {
	if _, err := NewHasher(Config{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}); err == nil {
		t.Fatal("tiny memory accepted")
	}
	if _, err := NewHasher(Config{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16}); err == nil {
		t.Fatal("zero time cost accepted")
	}
	if _, err := NewHasher(Config{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}); err == nil {
		t.Fatal("short salt accepted")
	}
}
