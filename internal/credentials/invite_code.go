package credentials

import (
	"crypto/rand"
	"math/big"
)

const (
	// InviteCodeLength is the number of characters in a family invite code
	InviteCodeLength = 6
	// MaxInviteCodeAttempts bounds regeneration when a code collides with an existing family
	MaxInviteCodeAttempts = 5

	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateInviteCode generates a random 6-character code using uppercase letters and digits
func GenerateInviteCode() (string, error) {
	code := make([]byte, InviteCodeLength)
	max := big.NewInt(int64(len(inviteCodeAlphabet)))

	for i := 0; i < InviteCodeLength; i++ {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteCodeAlphabet[num.Int64()]
	}

	return string(code), nil
}

// CodeGenerator produces invite codes. Tests substitute deterministic generators.
type CodeGenerator func() (string, error)
