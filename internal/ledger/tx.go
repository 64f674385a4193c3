package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

// transact builds, signs and sends one contract call, then waits for it.
func (c *Client) transact(ctx context.Context, op string, signer Signer, to common.Address, value *big.Int, data []byte) (domain.Receipt, error) {
	if value == nil {
		value = new(big.Int)
	}
	from := signer.Address()

	tx, err := c.buildTx(ctx, op, from, to, value, data)
	if err != nil {
		return domain.Receipt{}, err
	}

	signed, err := signer.SignTx(tx)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("ledger: %s: sign: %w", op, err)
	}

	sctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	err = c.backend.SendTransaction(sctx, signed)
	cancel()
	if err != nil {
		return domain.Receipt{}, classify(op+": send", err)
	}

	hash := signed.Hash().Hex()
	c.logger.InfoContext(ctx, "transaction sent",
		slog.String("operation", op),
		slog.String("tx_hash", hash),
		slog.String("from", from.Hex()),
		slog.Uint64("nonce", signed.Nonce()),
	)

	return c.waitMined(ctx, op, signed.Hash())
}

func (c *Client) buildTx(ctx context.Context, op string, from, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	nonce, err := c.backend.PendingNonceAt(cctx, from)
	if err != nil {
		return nil, classify(op+": nonce", err)
	}

	head, err := c.backend.HeaderByNumber(cctx, nil)
	if err != nil {
		return nil, classify(op+": header", err)
	}

	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: data}
	estimate, err := c.backend.EstimateGas(cctx, msg)
	if err != nil {
		return nil, classify(op+": estimate gas", err)
	}
	gas := uint64(math.Ceil(float64(estimate) * c.cfg.GasLimitMultiplier))

	if head.BaseFee != nil {
		tip, err := c.backend.SuggestGasTipCap(cctx)
		if err != nil {
			return nil, classify(op+": gas tip", err)
		}
		feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   c.cfg.ChainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}

	price, err := c.backend.SuggestGasPrice(cctx)
	if err != nil {
		return nil, classify(op+": gas price", err)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}

// waitMined polls for the receipt of hash until it is found or the
// confirmation timeout elapses. Transient RPC errors keep the poll going.
func (c *Client) waitMined(ctx context.Context, op string, hash common.Hash) (domain.Receipt, error) {
	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		rctx, rcancel := context.WithTimeout(wctx, c.cfg.CallTimeout)
		receipt, err := c.backend.TransactionReceipt(rctx, hash)
		rcancel()

		switch {
		case err == nil && receipt != nil:
			if c.observer != nil {
				c.observer.ObserveConfirmation(op, time.Since(start))
			}
			return c.toReceipt(ctx, op, hash, receipt)
		case err != nil && !errors.Is(err, ethereum.NotFound):
			lastErr = err
			c.logger.DebugContext(ctx, "receipt poll failed",
				slog.String("tx_hash", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-wctx.Done():
			cause := fmt.Errorf("ledger: %s: %w after %s", op, domain.ErrConfirmationTimeout, c.cfg.ConfirmTimeout)
			if lastErr != nil {
				cause = fmt.Errorf("%w (last error: %v)", cause, lastErr)
			}
			c.logger.WarnContext(ctx, "transaction confirmation timed out",
				slog.String("operation", op),
				slog.String("tx_hash", hash.Hex()),
			)
			return domain.Receipt{}, &domain.TxError{TxHash: hash.Hex(), Err: cause}
		case <-ticker.C:
		}
	}
}

func (c *Client) toReceipt(ctx context.Context, op string, hash common.Hash, r *types.Receipt) (domain.Receipt, error) {
	rec := domain.Receipt{
		TxHash:  hash.Hex(),
		GasUsed: r.GasUsed,
		Status:  r.Status,
	}
	if r.BlockNumber != nil {
		rec.BlockNumber = r.BlockNumber.Uint64()
	}
	if r.Status != types.ReceiptStatusSuccessful {
		return rec, &domain.TxError{
			TxHash: rec.TxHash,
			Err:    fmt.Errorf("ledger: %s: %w: reverted in block %d", op, domain.ErrTransactionRejected, rec.BlockNumber),
		}
	}
	c.logger.InfoContext(ctx, "transaction confirmed",
		slog.String("operation", op),
		slog.String("tx_hash", rec.TxHash),
		slog.Uint64("block", rec.BlockNumber),
		slog.Uint64("gas_used", rec.GasUsed),
	)
	return rec, nil
}
