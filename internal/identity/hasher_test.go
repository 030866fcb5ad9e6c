// Copyright 2026 The Busgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"strings"
	"testing"
)

func testHasher() *SecretHasher {
	// Low-cost parameters; hashing strength is not under test.
	return NewSecretHasher(8*1024, 1, 1, 16, 32)
}

// TestPurpose: Validates secret hash and verify round trip.
// Scope: Unit Test
// Security: Secrets are compared by re-hash, never stored in plaintext.
// Expected: The original secret verifies, a different one does not.
func TestSecretHasher_HashAndVerify(t *testing.T) {
	h := testHasher()

	encoded, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Errorf("unexpected encoding: %q", encoded)
	}
	if strings.Contains(encoded, "s3cret") {
		t.Error("plaintext leaked into encoded hash")
	}

	ok, err := h.Verify("s3cret", encoded)
	if err != nil || !ok {
		t.Errorf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("wrong", encoded)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Error("wrong secret must not verify")
	}
}

// TestPurpose: Validates hash format errors surface instead of panicking.
// Scope: Unit Test
// Expected: Garbage input returns an error, not a match.
func TestSecretHasher_VerifyMalformed(t *testing.T) {
	h := testHasher()

	for _, in := range []string{"", "plaintext", "$bcrypt$whatever"} {
		ok, err := h.Verify("secret", in)
		if err == nil || ok {
			t.Errorf("Verify against %q: expected error, got ok=%v err=%v", in, ok, err)
		}
	}
}
