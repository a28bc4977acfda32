package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ---------------------------------------------------------------------------
// Address validation & key derivation
// ---------------------------------------------------------------------------

// ValidateAddress checks that addr is a well-formed Solana address:
// base58, decoding to exactly 32 bytes. Program-derived addresses are
// off-curve, so no curve check is applied here.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("address %q: not base58: %w", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address %q: expected 32 bytes, got %d", addr, len(raw))
	}
	return nil
}

// ValidateWalletAddress checks that addr is a well-formed address AND a
// valid ed25519 point. Wallet addresses are real keypairs and must lie
// on the curve, unlike PDAs.
func ValidateWalletAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("wallet %q: not base58: %w", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("wallet %q: expected 32 bytes, got %d", addr, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("wallet %q: not on ed25519 curve", addr)
	}
	return nil
}

// DeriveAccount derives the wallet account from a base58-encoded private
// key. Both the 64-byte solana keypair format (seed || pubkey) and a raw
// 32-byte seed are accepted.
func DeriveAccount(privateKey string) (Account, error) {
	raw, err := base58.Decode(privateKey)
	if err != nil {
		return Account{}, fmt.Errorf("private key: not base58: %w", err)
	}

	var pub []byte
	switch len(raw) {
	case ed25519.PrivateKeySize: // 64: seed || pubkey
		pub = raw[32:]
	case ed25519.SeedSize: // 32: seed only
		key := ed25519.NewKeyFromSeed(raw)
		pub = key.Public().(ed25519.PublicKey)
	default:
		return Account{}, fmt.Errorf("private key: expected 32 or 64 bytes, got %d", len(raw))
	}

	addr := base58.Encode(pub)
	if err := ValidateWalletAddress(addr); err != nil {
		return Account{}, err
	}

	return Account{Address: Pubkey(addr), SigningKey: privateKey}, nil
}

// IsNativeToken reports whether token refers to SOL itself.
func IsNativeToken(token string) bool {
	return len(token) == 3 &&
		(token[0] == 'S' || token[0] == 's') &&
		(token[1] == 'O' || token[1] == 'o') &&
		(token[2] == 'L' || token[2] == 'l')
}

// findProgramAddress derives a PDA the same way the runtime does: hash
// seeds + bump + program + marker, take the first bump whose result is
// off-curve.
func findProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	program, err := base58.Decode(string(programID))
	if err != nil || len(program) != 32 {
		return "", fmt.Errorf("program id %q invalid", programID)
	}

	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program)
		h.Write([]byte("ProgramDerivedAddress"))
		candidate := h.Sum(nil)

		// PDAs must be off-curve.
		if _, err := new(edwards25519.Point).SetBytes(candidate); err != nil {
			return Pubkey(base58.Encode(candidate)), nil
		}
	}
	return "", fmt.Errorf("no viable bump for program %s", programID)
}

// BondingCurveAddress derives the pump.fun bonding curve PDA for a mint.
func BondingCurveAddress(mint Pubkey) (Pubkey, error) {
	raw, err := base58.Decode(string(mint))
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("mint %q invalid", mint)
	}
	return findProgramAddress([][]byte{[]byte("bonding-curve"), raw}, PumpFunProgramID)
}
