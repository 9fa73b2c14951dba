package auth

import "testing"

func TestVerifierAllowed(t *testing.T) {
	cases := []struct {
		name      string
		completer string
		verifier  string
		want      bool
	}{
		{"different instances", "alice", "bob", true},
		{"same instance", "alice", "alice", false},
		{"empty completer", "", "bob", false},
		{"empty verifier", "alice", "", false},
		{"both empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VerifierAllowed(tc.completer, tc.verifier); got != tc.want {
				t.Fatalf("VerifierAllowed(%q, %q) = %v, want %v", tc.completer, tc.verifier, got, tc.want)
			}
		})
	}
}
