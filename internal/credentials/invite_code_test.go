package credentials

import (
	"regexp"
	"testing"
)

var inviteCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestGenerateInviteCode(t *testing.T) {
	tests := []struct {
		name       string
		iterations int
		checkDupes bool
	}{
		{
			name:       "generates codes in the invite alphabet",
			iterations: 200,
		},
		{
			name:       "generates distinct codes",
			iterations: 20,
			checkDupes: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make(map[string]bool)
			for i := 0; i < tt.iterations; i++ {
				code, err := GenerateInviteCode()
				if err != nil {
					t.Fatalf("GenerateInviteCode() error = %v", err)
				}

				if !inviteCodePattern.MatchString(code) {
					t.Errorf("code %q does not match [A-Z0-9]{6}", code)
				}

				if tt.checkDupes {
					if seen[code] {
						t.Errorf("duplicate code generated: %s", code)
					}
					seen[code] = true
				}
			}
		})
	}
}

func TestGenerateInviteCodeCoversAlphabet(t *testing.T) {
	seen := make(map[rune]bool)
	for i := 0; i < 2000 && len(seen) < len(inviteCodeAlphabet); i++ {
		code, err := GenerateInviteCode()
		if err != nil {
			t.Fatalf("GenerateInviteCode() error = %v", err)
		}
		for _, r := range code {
			seen[r] = true
		}
	}

	if len(seen) != len(inviteCodeAlphabet) {
		t.Errorf("saw %d distinct characters, want %d", len(seen), len(inviteCodeAlphabet))
	}
}
