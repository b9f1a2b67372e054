package framework

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/allo-protocol/allo-deployer/deploy"
)

var (
	errTxReverted      = errors.New("creation transaction reverted")
	errNoContractAddr  = errors.New("receipt has no contract address")
	errConfirmTimedOut = errors.New("timed out waiting for confirmation")
)

// Backend is what a ContractFactory needs from a node.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// DeploymentError is returned when a creation transaction could not be sent or did not succeed.
// TxHash is zero if the transaction never reached the node.
type DeploymentError struct {
	Contract string
	TxHash   common.Hash
	Err      error
}

func (e *DeploymentError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("deploy %s: %v", e.Contract, e.Err)
	}
	return fmt.Sprintf("deploy %s (tx %s): %v", e.Contract, e.TxHash.Hex(), e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }

// TxOptions are the per-transaction overrides taken from Config.
type TxOptions struct {
	GasFeeCap      *big.Int
	GasTipCap      *big.Int
	GasLimit       uint64
	ConfirmTimeout time.Duration
}

func (c *Config) TxOptions() TxOptions {
	opts := TxOptions{
		GasLimit:       c.GasLimit,
		ConfirmTimeout: c.ConfirmTimeout,
	}
	if c.MaxFeePerGas != nil {
		opts.GasFeeCap = c.MaxFeePerGas.ToBig()
	}
	if c.MaxPriorityFeePerGas != nil {
		opts.GasTipCap = c.MaxPriorityFeePerGas.ToBig()
	}
	return opts
}

// ContractFactory deploys one artifact from one signer.
type ContractFactory struct {
	artifact *Artifact
	backend  Backend
	signer   *PrivKey
	chainID  *big.Int
	opts     TxOptions
	log      *logrus.Entry
}

func NewContractFactory(log *logrus.Entry, artifact *Artifact, backend Backend, signer *PrivKey, chainID *big.Int, opts TxOptions) *ContractFactory {
	return &ContractFactory{
		artifact: artifact,
		backend:  backend,
		signer:   signer,
		chainID:  chainID,
		opts:     opts,
		log:      log.WithField("artifact", artifact.FullyQualifiedName()),
	}
}

// DeployAndConfirm sends the creation transaction with args as constructor
// arguments and waits for its receipt.
func (f *ContractFactory) DeployAndConfirm(ctx context.Context, args ...interface{}) (deploy.Deployment, error) {
	name := f.artifact.ContractName
	fail := func(txHash common.Hash, err error) (deploy.Deployment, error) {
		return deploy.Deployment{}, &DeploymentError{Contract: name, TxHash: txHash, Err: err}
	}

	if f.chainID == nil {
		return fail(common.Hash{}, errChainIDUnknown)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(f.signer.Priv, f.chainID)
	if err != nil {
		return fail(common.Hash{}, err)
	}
	auth.Context = ctx
	auth.GasFeeCap = f.opts.GasFeeCap
	auth.GasTipCap = f.opts.GasTipCap
	auth.GasLimit = f.opts.GasLimit

	_, tx, _, err := bind.DeployContract(auth, *f.artifact.Abi, f.artifact.Code, f.backend, args...)
	if err != nil {
		return fail(common.Hash{}, err)
	}
	f.log.WithField("tx", tx.Hash().Hex()).WithField("nonce", tx.Nonce()).Debug("creation transaction sent")

	waitCtx := ctx
	if f.opts.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.opts.ConfirmTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, f.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = errConfirmTimedOut
		}
		return fail(tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fail(tx.Hash(), errTxReverted)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return fail(tx.Hash(), errNoContractAddr)
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return deploy.Deployment{
		Contract:    name,
		Address:     receipt.ContractAddress,
		TxHash:      tx.Hash(),
		BlockNumber: block,
		GasUsed:     receipt.GasUsed,
		DeployedAt:  time.Now().UTC(),
	}, nil
}
