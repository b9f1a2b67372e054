// Package framework is the toolchain side of a deployment: configuration,
// signer, compiled artifacts and the node connection used to deploy them.
package framework

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/sirupsen/logrus"

	"github.com/allo-protocol/allo-deployer/deploy"
)

var (
	errNodeConnection    = errors.New("failed to connect to node")
	errPreflightDisabled = errors.New("preflight needs an rpc connection")
	errChainIDMismatch   = errors.New("configured chain id does not match node")
	errChainIDUnknown    = errors.New("chain id unknown, run preflight or set it in config")
)

type Framework struct {
	cfg     *Config
	log     *logrus.Entry
	signer  *PrivKey
	store   *ArtifactStore
	backend Backend
	chainID *big.Int

	rpc *rpc.Client
	w3  *w3.Client
}

// PreflightInfo is the node's view of the deployer account.
type PreflightInfo struct {
	ChainID uint64
	Balance *uint256.Int
	Nonce   uint64
}

// New dials cfg.RPCEndpoint once and shares the connection between the
// transaction backend and the batched w3 client.
func New(ctx context.Context, cfg *Config, log *logrus.Entry) (*Framework, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		log.WithError(err).WithField("rpc", cfg.RPCEndpoint).Error("failed to connect to node")
		return nil, errNodeConnection
	}

	fr, err := newFramework(cfg, log, ethclient.NewClient(rpcClient))
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	fr.rpc = rpcClient
	fr.w3 = w3.NewClient(rpcClient)
	return fr, nil
}

// NewWithBackend builds a Framework on an existing backend. Preflight is not
// available, so cfg.ChainID must be set.
func NewWithBackend(cfg *Config, log *logrus.Entry, backend Backend) (*Framework, error) {
	if cfg.ChainID == 0 {
		return nil, errChainIDUnknown
	}
	return newFramework(cfg, log, backend)
}

func newFramework(cfg *Config, log *logrus.Entry, backend Backend) (*Framework, error) {
	signer, err := NewPrivKeyFromHex(cfg.SignerKey)
	if err != nil {
		return nil, err
	}
	fr := &Framework{
		cfg:     cfg,
		log:     log,
		signer:  signer,
		store:   NewArtifactStore(cfg.ArtifactsDir),
		backend: backend,
	}
	if cfg.ChainID != 0 {
		fr.chainID = new(big.Int).SetUint64(cfg.ChainID)
	}
	return fr, nil
}

func (f *Framework) ChainID() uint64 {
	if f.chainID == nil {
		return 0
	}
	return f.chainID.Uint64()
}

// Preflight fetches chain id, signer balance and nonce in one batch and pins
// the chain id used for signing.
func (f *Framework) Preflight(ctx context.Context) (*PreflightInfo, error) {
	if f.w3 == nil {
		return nil, errPreflightDisabled
	}

	var (
		addr    = f.signer.Address()
		chainID uint64
		balance = new(big.Int)
		nonce   uint64
	)
	if err := f.w3.CallCtx(ctx,
		eth.ChainID().Returns(&chainID),
		eth.Balance(addr, nil).Returns(balance),
		eth.Nonce(addr, nil).Returns(&nonce),
	); err != nil {
		return nil, fmt.Errorf("preflight: %w", err)
	}

	if f.cfg.ChainID != 0 && f.cfg.ChainID != chainID {
		return nil, fmt.Errorf("%w: config %d, node %d", errChainIDMismatch, f.cfg.ChainID, chainID)
	}
	f.chainID = new(big.Int).SetUint64(chainID)

	info := &PreflightInfo{
		ChainID: chainID,
		Balance: uint256.MustFromBig(balance),
		Nonce:   nonce,
	}
	f.log.WithFields(logrus.Fields{
		"chainID": info.ChainID,
		"signer":  addr.Hex(),
		"balance": info.Balance.Dec(),
		"nonce":   info.Nonce,
	}).Info("Preflight done")
	return info, nil
}

// ResolveFactory looks name up in the artifacts directory and binds it to the node.
func (f *Framework) ResolveFactory(name string) (deploy.Factory, error) {
	art, err := f.store.Resolve(name)
	if err != nil {
		return nil, err
	}
	return NewContractFactory(f.log, art, f.backend, f.signer, f.chainID, f.cfg.TxOptions()), nil
}

func (f *Framework) Close() {
	if f.rpc != nil {
		f.rpc.Close()
	}
}
