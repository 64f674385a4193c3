// Package ledger talks to the donation and oracle contracts over JSON-RPC.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

// Backend is the subset of *ethclient.Client the ledger needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Signer signs transactions on behalf of one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// ConfirmationObserver receives how long a transaction took to confirm.
type ConfirmationObserver interface {
	ObserveConfirmation(operation string, d time.Duration)
}

// Config holds the ledger client settings.
type Config struct {
	DonationAddress    common.Address
	OracleAddress      common.Address
	ChainID            *big.Int
	CallTimeout        time.Duration
	ConfirmTimeout     time.Duration
	PollInterval       time.Duration
	GasLimitMultiplier float64
}

// Client submits and confirms contract transactions.
type Client struct {
	backend  Backend
	cfg      Config
	observer ConfirmationObserver
	logger   *slog.Logger
}

// NewClient creates a ledger Client. observer may be nil.
func NewClient(backend Backend, cfg Config, observer ConfirmationObserver, logger *slog.Logger) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.GasLimitMultiplier < 1 {
		cfg.GasLimitMultiplier = 1
	}
	return &Client{
		backend:  backend,
		cfg:      cfg,
		observer: observer,
		logger:   logger.With(slog.String("component", "ledger")),
	}
}

// ChainID returns the chain the client signs for.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.cfg.ChainID)
}

// ReadRate returns the exchange rate currently stored in the oracle.
func (c *Client) ReadRate(ctx context.Context) (*big.Int, error) {
	data, err := oracleContractABI.Pack(methodGetRate)
	if err != nil {
		return nil, fmt.Errorf("ledger: pack getRate: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	to := c.cfg.OracleAddress
	out, err := c.backend.CallContract(cctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, classify("read rate", err)
	}

	values, err := oracleContractABI.Unpack(methodGetRate, out)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("ledger: read rate: %w: unexpected getRate result (%d bytes)", domain.ErrLedgerUnreachable, len(out))
	}
	rate, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("ledger: read rate: %w: getRate returned %T", domain.ErrLedgerUnreachable, values[0])
	}
	return rate, nil
}

// PublishRate writes rate to the oracle contract and waits for confirmation.
func (c *Client) PublishRate(ctx context.Context, signer Signer, rate *big.Int) (domain.Receipt, error) {
	data, err := oracleContractABI.Pack(methodUpdateRate, rate)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("ledger: pack updateRate: %w", err)
	}
	return c.transact(ctx, string(domain.OperationUpdateRate), signer, c.cfg.OracleAddress, nil, data)
}

// SubmitDonation sends wei to the donation contract tagged with label.
func (c *Client) SubmitDonation(ctx context.Context, signer Signer, label string, wei *big.Int) (domain.Receipt, error) {
	data, err := donationContractABI.Pack(methodDonate, label)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("ledger: pack donate: %w", err)
	}
	return c.transact(ctx, string(domain.OperationDonate), signer, c.cfg.DonationAddress, wei, data)
}

// SubmitWithdrawal asks the donation contract to release its balance.
func (c *Client) SubmitWithdrawal(ctx context.Context, signer Signer) (domain.Receipt, error) {
	data, err := donationContractABI.Pack(methodWithdraw)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("ledger: pack withdraw: %w", err)
	}
	return c.transact(ctx, string(domain.OperationWithdraw), signer, c.cfg.DonationAddress, nil, data)
}

// Balance returns the latest balance of account in wei.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	bal, err := c.backend.BalanceAt(cctx, account, nil)
	if err != nil {
		return nil, classify("balance", err)
	}
	return bal, nil
}
