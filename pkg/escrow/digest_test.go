package escrow_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/taskpaylabs/taskpayd/pkg/escrow"
)

var (
	testContract  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	testOwner     = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	testToken     = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	testRecipient = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

func TestDepositKey(t *testing.T) {
	key := escrow.DepositKey("T1")
	require.Equal(t, crypto.Keccak256Hash([]byte("T1")), key)
	require.NotEqual(t, key, escrow.DepositKey("T2"))
}

func TestDigests(t *testing.T) {
	key := escrow.DepositKey("T1")
	amount := big.NewInt(95)

	t.Run("deterministic", func(t *testing.T) {
		a := escrow.WithdrawDigest(testContract, key, testOwner, testToken, amount)
		b := escrow.WithdrawDigest(testContract, key, testOwner, testToken, big.NewInt(95))
		require.Equal(t, a, b)
		require.Len(t, a, 32)
	})

	t.Run("withdraw and settle digests differ", func(t *testing.T) {
		withdraw := escrow.WithdrawDigest(testContract, key, testOwner, testToken, amount)
		settle := escrow.SettleDigest(testContract, key, testOwner, testToken, testRecipient, amount)
		require.NotEqual(t, withdraw, settle)
	})

	t.Run("every field is bound", func(t *testing.T) {
		base := escrow.WithdrawDigest(testContract, key, testOwner, testToken, amount)
		require.NotEqual(t, base, escrow.WithdrawDigest(testRecipient, key, testOwner, testToken, amount))
		require.NotEqual(t, base, escrow.WithdrawDigest(testContract, escrow.DepositKey("T2"), testOwner, testToken, amount))
		require.NotEqual(t, base, escrow.WithdrawDigest(testContract, key, testRecipient, testToken, amount))
		require.NotEqual(t, base, escrow.WithdrawDigest(testContract, key, testOwner, testRecipient, amount))
		require.NotEqual(t, base, escrow.WithdrawDigest(testContract, key, testOwner, testToken, big.NewInt(96)))
	})

	t.Run("settle binds the recipient", func(t *testing.T) {
		a := escrow.SettleDigest(testContract, key, testOwner, testToken, testRecipient, amount)
		b := escrow.SettleDigest(testContract, key, testOwner, testToken, testOwner, amount)
		require.NotEqual(t, a, b)
	})
}

func TestRecoverSigner(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(priv.PublicKey)

	digest := escrow.WithdrawDigest(testContract, escrow.DepositKey("T1"), testOwner, testToken, big.NewInt(95))

	sig, err := crypto.Sign(digest, priv)
	require.NoError(t, err)

	t.Run("raw recovery id", func(t *testing.T) {
		got, err := escrow.RecoverSigner(digest, sig)
		require.NoError(t, err)
		require.Equal(t, signer, got)
	})

	t.Run("wallet recovery id", func(t *testing.T) {
		wallet := make([]byte, len(sig))
		copy(wallet, sig)
		wallet[64] += 27
		got, err := escrow.RecoverSigner(digest, wallet)
		require.NoError(t, err)
		require.Equal(t, signer, got)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := escrow.RecoverSigner(digest, sig[:64])
		require.Error(t, err)
	})

	t.Run("different digest recovers a different address", func(t *testing.T) {
		other := escrow.WithdrawDigest(testContract, escrow.DepositKey("T2"), testOwner, testToken, big.NewInt(95))
		got, err := escrow.RecoverSigner(other, sig)
		if err == nil {
			require.NotEqual(t, signer, got)
		}
	})
}
