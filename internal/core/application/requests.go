package application

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/taskpaylabs/taskpayd/internal/core/domain"
	"github.com/taskpaylabs/taskpayd/pkg/signcodec"
)

// Kind discriminators carried by every signable message. A signature over
// one kind never verifies for another, even when the remaining fields
// coincide.
const (
	KindTaskCreate    = "task:create"
	KindTaskFund      = "task:fund"
	KindTaskDecision  = "task:decision"
	KindTaskCancel    = "task:cancel"
	KindTaskSettle    = "task:settle"
	KindTaskResponse  = "task:response"
	KindTaskQuery     = "task:query"
	KindResponseQuery = "response:query"
)

// Signed carries the claimed signer identity and the detached signature
// over the canonical encoding of the request's message.
type Signed struct {
	Address   string
	Signature string
}

type CreateTaskRequest struct {
	Signed
	Id string
}

type FundTaskRequest struct {
	Signed
	Id    string
	Price string
	Token string
}

type CancelTaskRequest struct {
	Signed
	Id string
}

type SettlementRequest struct {
	Signed
	ResponseId string
}

type ListTasksRequest struct {
	Signed
}

type SubmitResponseRequest struct {
	Signed
	Id      string
	TaskId  string
	Payload string
}

type DecideResponseRequest struct {
	Signed
	ResponseId          string
	Worker              string
	Price               string
	Accept              bool
	SettlementBlob      string
	SettlementSignature string
}

type ListResponsesRequest struct {
	Signed
	TaskId string
}

// normalizeAddress validates a hex address and returns its checksummed
// form, the only representation stored or compared.
func normalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q: %w", address, domain.ErrInvalidRequest)
	}
	return common.HexToAddress(address).Hex(), nil
}

// parsePrice validates a price as a positive integer in its canonical
// decimal representation. Comparisons elsewhere are string-equal, so a
// non-canonical form ("0100") must never be persisted.
func parsePrice(price string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(price, 10)
	if !ok || n.Sign() <= 0 || n.String() != price {
		return nil, fmt.Errorf("invalid price %q: %w", price, domain.ErrInvalidRequest)
	}
	return n, nil
}

// parseToken splits a chain-qualified token identifier into its chain
// reference and token address, and returns the normalized identifier.
func parseToken(token string) (string, common.Address, error) {
	i := strings.LastIndex(token, ":")
	if i <= 0 {
		return "", common.Address{}, fmt.Errorf("invalid token %q: %w", token, domain.ErrInvalidRequest)
	}
	chainRef, addr := token[:i], token[i+1:]
	if !common.IsHexAddress(addr) {
		return "", common.Address{}, fmt.Errorf("invalid token address %q: %w", addr, domain.ErrInvalidRequest)
	}
	tokenAddr := common.HexToAddress(addr)
	return chainRef + ":" + tokenAddr.Hex(), tokenAddr, nil
}

// verifySigned checks the detached signature over the canonical encoding of
// msg against the claimed address. It is always the last validation step of
// an operation.
func verifySigned(address string, msg map[string]any, signature string) error {
	encoded, err := signcodec.Canonicalize(msg)
	if err != nil {
		return fmt.Errorf("failed to canonicalize message: %w", domain.ErrInternal)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return fmt.Errorf("malformed signature: %w", domain.ErrUnauthorized)
	}
	if !signcodec.Verify(address, encoded, sig) {
		return fmt.Errorf("signature verification failed: %w", domain.ErrUnauthorized)
	}
	return nil
}
