// Package ethereum implements the escrow ledger read client against the
// deployed escrow contract.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/taskpaylabs/taskpayd/internal/core/ports"
)

// Read-only slice of the escrow contract interface.
const escrowABI = `[{
	"name": "getDeposit",
	"type": "function",
	"stateMutability": "view",
	"inputs": [{"name": "key", "type": "bytes32"}],
	"outputs": [
		{"name": "owner", "type": "address"},
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"},
		{"name": "released", "type": "bool"}
	]
}]`

type service struct {
	client   *ethclient.Client
	abi      abi.ABI
	contract common.Address
	timeout  time.Duration
}

func NewService(rpcURL string, contract common.Address, timeout time.Duration) (ports.EscrowReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger rpc: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow abi: %w", err)
	}
	return &service{
		client:   client,
		abi:      parsed,
		contract: contract,
		timeout:  timeout,
	}, nil
}

// FetchDepositInfo resolves the ledger entry for key with a bounded
// timeout. RPC failures are reported as ports.ErrLedgerUnavailable so
// callers can retry; an all-zero owner in the result means no deposit.
func (s *service) FetchDepositInfo(ctx context.Context, key common.Hash) (*ports.DepositInfo, error) {
	data, err := s.abi.Pack("getDeposit", [32]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getDeposit call: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.CallContract(ctx, goethereum.CallMsg{
		To:   &s.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrLedgerUnavailable, err)
	}

	values, err := s.abi.Unpack("getDeposit", out)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack getDeposit result: %s", ports.ErrLedgerUnavailable, err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("%w: unexpected getDeposit result arity %d", ports.ErrLedgerUnavailable, len(values))
	}

	owner, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected owner type", ports.ErrLedgerUnavailable)
	}
	token, ok := values[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected token type", ports.ErrLedgerUnavailable)
	}
	amount, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected amount type", ports.ErrLedgerUnavailable)
	}
	released, ok := values[3].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected released type", ports.ErrLedgerUnavailable)
	}

	return &ports.DepositInfo{
		Owner:        owner,
		Token:        token,
		AmountLocked: amount,
		Released:     released,
	}, nil
}

func (s *service) Close() {
	s.client.Close()
}
