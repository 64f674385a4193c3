package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/web3dona/internal/crypto"
	"github.com/alanyoungcy/web3dona/internal/domain"
)

const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var (
	testChainID  = big.NewInt(31337)
	donationAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	oracleAddr   = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

type fakeBackend struct {
	mu sync.Mutex

	rate     *big.Int
	callErr  error
	baseFee  *big.Int
	tip      *big.Int
	gasPrice *big.Int
	estimate uint64
	estErr   error
	sendErr  error
	balance  *big.Int

	receiptStatus uint64
	pendingPolls  int
	neverMined    bool

	nonceCalls int
	sent       []*types.Transaction
	polls      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rate:          big.NewInt(50_000_000),
		baseFee:       big.NewInt(1_000_000_000),
		tip:           big.NewInt(2_000_000_000),
		gasPrice:      big.NewInt(3_000_000_000),
		estimate:      50_000,
		balance:       big.NewInt(1_000_000_000_000_000_000),
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return common.LeftPadBytes(f.rate.Bytes(), 32), nil
}

func (f *fakeBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return 7, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return f.tip, nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.estErr != nil {
		return 0, f.estErr
	}
	return f.estimate, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.neverMined || f.polls <= f.pendingPolls {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:      f.receiptStatus,
		TxHash:      hash,
		BlockNumber: big.NewInt(101),
		GasUsed:     42_000,
	}, nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingObserver) ObserveConfirmation(op string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func newTestClient(t *testing.T, b Backend, obs ConfirmationObserver) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(b, Config{
		DonationAddress:    donationAddr,
		OracleAddress:      oracleAddr,
		ChainID:            testChainID,
		CallTimeout:        time.Second,
		ConfirmTimeout:     time.Second,
		PollInterval:       5 * time.Millisecond,
		GasLimitMultiplier: 1.5,
	}, obs, logger)
}

func newTestSigner(t *testing.T) *crypto.EphemeralSigner {
	t.Helper()
	s, err := crypto.NewEphemeralSigner(devKey, testChainID)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

func TestReadRate(t *testing.T) {
	t.Parallel()

	// Arrange
	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	// Act
	rate, err := c.ReadRate(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), rate.Int64())
}

func TestReadRate_NodeDown(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.callErr = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
	c := newTestClient(t, b, nil)

	_, err := c.ReadRate(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLedgerUnreachable)
}

func TestReadRate_EmptyResult(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	c := newTestClient(t, &emptyCallBackend{fakeBackend: b}, nil)

	_, err := c.ReadRate(context.Background())

	assert.ErrorIs(t, err, domain.ErrLedgerUnreachable)
}

type emptyCallBackend struct{ *fakeBackend }

func (e *emptyCallBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func TestSubmitDonation_DynamicFee(t *testing.T) {
	t.Parallel()

	// Arrange
	b := newFakeBackend()
	obs := &recordingObserver{}
	c := newTestClient(t, b, obs)
	signer := newTestSigner(t)
	wei := big.NewInt(2_000_000_000_000_000)

	// Act
	rec, err := c.SubmitDonation(context.Background(), signer, "Alice", wei)

	// Assert
	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	tx := b.sent[0]
	assert.Equal(t, tx.Hash().Hex(), rec.TxHash)
	assert.Equal(t, uint64(101), rec.BlockNumber)
	assert.Equal(t, uint64(42_000), rec.GasUsed)

	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, 0, tx.Value().Cmp(wei))
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(75_000), tx.Gas())
	assert.Equal(t, int64(2_000_000_000), tx.GasTipCap().Int64())
	assert.Equal(t, int64(4_000_000_000), tx.GasFeeCap().Int64())
	assert.Equal(t, donationAddr, *tx.To())

	from, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), from)

	method := donationContractABI.Methods[methodDonate]
	require.GreaterOrEqual(t, len(tx.Data()), 4)
	assert.Equal(t, method.ID, tx.Data()[:4])
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "Alice", args[0])

	assert.Equal(t, []string{"donate"}, obs.ops)
}

func TestSubmitDonation_LegacyFee(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.baseFee = nil
	c := newTestClient(t, b, nil)

	_, err := c.SubmitDonation(context.Background(), newTestSigner(t), "Bob", big.NewInt(1))

	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	assert.Equal(t, uint8(types.LegacyTxType), b.sent[0].Type())
	assert.Equal(t, int64(3_000_000_000), b.sent[0].GasPrice().Int64())
}

func TestSubmitDonation_WaitsForReceipt(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.pendingPolls = 3
	c := newTestClient(t, b, nil)

	_, err := c.SubmitDonation(context.Background(), newTestSigner(t), "Carol", big.NewInt(1))

	require.NoError(t, err)
	assert.Equal(t, 4, b.polls)
}

func TestSubmitDonation_ClassifiesNodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		estErr  error
		sendErr error
		want    error
		reason  string
	}{
		{
			name:   "revert during estimation",
			estErr: errors.New("execution reverted: Amount must be greater than 0"),
			want:   domain.ErrTransactionRejected,
			reason: "Amount must be greater than 0",
		},
		{
			name:    "insufficient funds on send",
			sendErr: errors.New("insufficient funds for gas * price + value"),
			want:    domain.ErrInsufficientFunds,
		},
		{
			name:    "transport failure",
			sendErr: errors.New("Post \"http://node\": EOF"),
			want:    domain.ErrLedgerUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newFakeBackend()
			b.estErr = tt.estErr
			b.sendErr = tt.sendErr
			c := newTestClient(t, b, nil)

			_, err := c.SubmitDonation(context.Background(), newTestSigner(t), "Dan", big.NewInt(1))

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.reason)
			assert.Empty(t, b.sent)
		})
	}
}

func TestSubmitDonation_RevertedReceipt(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.receiptStatus = types.ReceiptStatusFailed
	c := newTestClient(t, b, nil)

	_, err := c.SubmitDonation(context.Background(), newTestSigner(t), "Eve", big.NewInt(1))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransactionRejected)
	require.Len(t, b.sent, 1)
	assert.Equal(t, b.sent[0].Hash().Hex(), domain.TxHashOf(err))
}

func TestSubmitDonation_ConfirmationTimeout(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.neverMined = true
	c := NewClient(b, Config{
		DonationAddress: donationAddr,
		OracleAddress:   oracleAddr,
		ChainID:         testChainID,
		CallTimeout:     time.Second,
		ConfirmTimeout:  40 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.SubmitDonation(context.Background(), newTestSigner(t), "Frank", big.NewInt(1))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)
	require.Len(t, b.sent, 1)
	assert.Equal(t, b.sent[0].Hash().Hex(), domain.TxHashOf(err))
}

func TestPublishRate_EncodesRate(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	_, err := c.PublishRate(context.Background(), newTestSigner(t), big.NewInt(61_234_567))

	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	tx := b.sent[0]
	assert.Equal(t, oracleAddr, *tx.To())
	assert.Equal(t, 0, tx.Value().Sign())

	method := oracleContractABI.Methods[methodUpdateRate]
	assert.Equal(t, method.ID, tx.Data()[:4])
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(61_234_567), args[0].(*big.Int).Int64())
}

func TestSubmitWithdrawal(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	c := newTestClient(t, b, nil)

	rec, err := c.SubmitWithdrawal(context.Background(), newTestSigner(t))

	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	assert.Equal(t, donationAddr, *b.sent[0].To())
	assert.Equal(t, donationContractABI.Methods[methodWithdraw].ID, b.sent[0].Data())
	assert.NotEmpty(t, rec.TxHash)
}

func TestBalance(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, newFakeBackend(), nil)

	bal, err := c.Balance(context.Background(), common.HexToAddress(devAddress))

	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", bal.String())
}

func TestChainIDIsCopied(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, newFakeBackend(), nil)

	id := c.ChainID()
	id.SetInt64(1)

	assert.Equal(t, int64(31337), c.ChainID().Int64())
}
