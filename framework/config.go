package framework

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/viper"
)

const (
	EnvRPCURL               = "RPC_URL"
	EnvPrivateKey           = "PRIVATE_KEY"
	EnvChainID              = "CHAIN_ID"
	EnvArtifactsDir         = "ARTIFACTS_DIR"
	EnvMaxFeePerGas         = "MAX_FEE_PER_GAS"
	EnvMaxPriorityFeePerGas = "MAX_PRIORITY_FEE_PER_GAS"
	EnvGasLimit             = "GAS_LIMIT"
	EnvConfirmTimeout       = "CONFIRM_TIMEOUT"
	EnvDeploymentsFile      = "DEPLOYMENTS_FILE"
	EnvLogLevel             = "LOG_LEVEL"

	DefaultRPCURL       = "http://127.0.0.1:8545"
	DefaultArtifactsDir = "artifacts"
	DefaultLogLevel     = "info"

	// DefaultPrivateKeyHex is the first prefunded account of a local hardhat/anvil node,
	// address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266
	DefaultPrivateKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

var (
	errMissingRPCURL    = errors.New("missing rpc endpoint")
	errMissingSignerKey = errors.New("missing signer private key")
	errFeeCapBelowTip   = errors.New("max fee per gas is lower than max priority fee per gas")
	errNegativeDuration = errors.New("duration must not be negative")
)

// Config is everything the deployer needs to reach a network and sign for it.
type Config struct {
	RPCEndpoint string
	SignerKey   string

	// ChainID is checked against the node when non-zero, otherwise the node's value is used.
	ChainID      uint64
	ArtifactsDir string

	// Nil fee caps and a zero gas limit leave the choice to the node.
	MaxFeePerGas         *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
	GasLimit             uint64

	// ConfirmTimeout bounds each receipt wait. Zero waits until the context is cancelled.
	ConfirmTimeout time.Duration

	DeploymentsFile string
	LogLevel        string
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(EnvRPCURL, DefaultRPCURL)
	v.SetDefault(EnvPrivateKey, DefaultPrivateKeyHex)
	v.SetDefault(EnvArtifactsDir, DefaultArtifactsDir)
	v.SetDefault(EnvLogLevel, DefaultLogLevel)

	maxFee, err := parseWei(v.GetString(EnvMaxFeePerGas))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvMaxFeePerGas, err)
	}
	maxTip, err := parseWei(v.GetString(EnvMaxPriorityFeePerGas))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvMaxPriorityFeePerGas, err)
	}
	chainID, err := parseUint(v.GetString(EnvChainID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvChainID, err)
	}
	gasLimit, err := parseUint(v.GetString(EnvGasLimit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvGasLimit, err)
	}
	confirmTimeout, err := parseDuration(v.GetString(EnvConfirmTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvConfirmTimeout, err)
	}

	cfg := &Config{
		RPCEndpoint:          strings.TrimSpace(v.GetString(EnvRPCURL)),
		SignerKey:            strings.TrimSpace(v.GetString(EnvPrivateKey)),
		ChainID:              chainID,
		ArtifactsDir:         v.GetString(EnvArtifactsDir),
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: maxTip,
		GasLimit:             gasLimit,
		ConfirmTimeout:       confirmTimeout,
		DeploymentsFile:      v.GetString(EnvDeploymentsFile),
		LogLevel:             v.GetString(EnvLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return errMissingRPCURL
	}
	if c.SignerKey == "" {
		return errMissingSignerKey
	}
	if _, err := NewPrivKeyFromHex(c.SignerKey); err != nil {
		return err
	}
	if c.MaxFeePerGas != nil && c.MaxPriorityFeePerGas != nil && c.MaxFeePerGas.Lt(c.MaxPriorityFeePerGas) {
		return errFeeCapBelowTip
	}
	return nil
}

func parseWei(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return uint256.FromDecimal(s)
}

// parseUint only accepts plain decimal, so "010" or "5e6" are errors and not 8 or 0.
func parseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// parseDuration requires a unit: "120" is rejected instead of being read as nanoseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errNegativeDuration
	}
	return d, nil
}
