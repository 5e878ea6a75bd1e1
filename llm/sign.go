package llm

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignMessage signs msg with an EIP-191 personal-sign envelope and
// returns the 65-byte signature hex-encoded with a 0x prefix and
// v in {27, 28}, matching what wallets produce.
func SignMessage(key *ecdsa.PrivateKey, msg string) (string, error) {
	hash := accounts.TextHash([]byte(msg))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverSigner recovers the address that personal-signed msg. Accepts
// hex with or without a 0x prefix and v in {0, 1, 27, 28}.
func RecoverSigner(msg, sigHex string) (common.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("malformed signature hex: %w", err)
	}
	if len(raw) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(raw))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("public key recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
