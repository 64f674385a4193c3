package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrSignerDestroyed is returned when a destroyed signer is asked to sign.
var ErrSignerDestroyed = errors.New("crypto/signer: signer destroyed")

// EphemeralSigner is a transaction signer built from a caller-supplied secret
// for the lifetime of a single request. It is never shared between requests;
// the owner must call Destroy when the request completes.
type EphemeralSigner struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

// NewEphemeralSigner parses a hex-encoded secp256k1 private key (with or
// without 0x prefix) and binds it to chainID. The returned error never
// contains the secret.
func NewEphemeralSigner(secret string, chainID *big.Int) (*EphemeralSigner, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("crypto/signer: chain id must be positive")
	}
	keyHex := strings.TrimPrefix(strings.TrimSpace(secret), "0x")
	if keyHex == "" {
		return nil, fmt.Errorf("crypto/signer: empty private key")
	}

	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &EphemeralSigner{
		key:     pk,
		address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// Address returns the account derived from the secret.
func (s *EphemeralSigner) Address() common.Address {
	return s.address
}

// SignTx signs tx for the bound chain.
func (s *EphemeralSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return nil, ErrSignerDestroyed
	}
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign tx: %w", err)
	}
	return signed, nil
}

// Destroy zeroes the private scalar and drops the key. Safe to call more than
// once.
func (s *EphemeralSigner) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return
	}
	if s.key.D != nil {
		words := s.key.D.Bits()
		for i := range words {
			words[i] = 0
		}
		s.key.D.SetInt64(0)
	}
	s.key = nil
}

// Destroyed reports whether Destroy has been called.
func (s *EphemeralSigner) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key == nil
}
