// Package local implements the administrative withdraw signer with an
// in-process private key.
package local

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/taskpaylabs/taskpayd/internal/core/ports"
	"github.com/taskpaylabs/taskpayd/pkg/escrow"
)

type service struct {
	key      *ecdsa.PrivateKey
	contract common.Address
}

// NewService creates a withdraw signer from a hex-encoded private key,
// bound to the escrow contract whose digests it authorizes.
func NewService(privateKeyHex string, contract common.Address) (ports.WithdrawSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid admin private key: %w", err)
	}
	return &service{key: key, contract: contract}, nil
}

func (s *service) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *service) SignWithdraw(
	ctx context.Context, key common.Hash, owner, token common.Address, amount *big.Int,
) ([]byte, error) {
	digest := escrow.WithdrawDigest(s.contract, key, owner, token, amount)
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign withdraw digest: %w", err)
	}
	// wallet convention for the recovery id
	sig[64] += 27
	return sig, nil
}
