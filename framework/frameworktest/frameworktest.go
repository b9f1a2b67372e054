// Package frameworktest provides an in-process chain and artifact fixtures for tests.
package frameworktest

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

const (
	// StoreCode deploys a runtime that returns 42 for any call.
	StoreCode = "0x600a600c600039600a6000f3602a60805260206080f3"
	// RevertCode reverts in the constructor.
	RevertCode = "0x60006000fd"
	// UnlinkedCode carries a hardhat library placeholder.
	UnlinkedCode = "0x73__$5f4a1e6a6b4c2b5c1d2e3f405162738495$__6000"

	// DevKeyHex funds the signer on the simulated chain, address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266
	DevKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	commitInterval = 20 * time.Millisecond
)

var ChainID = params.AllDevChainProtocolChanges.ChainID

// NewChain starts a simulated chain that funds accounts and mines a block every
// few milliseconds, so receipt waits return on their own.
func NewChain(t *testing.T, accounts ...common.Address) simulated.Client {
	t.Helper()

	funds := new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))
	alloc := types.GenesisAlloc{}
	for _, addr := range accounts {
		alloc[addr] = types.Account{Balance: funds}
	}
	sim := simulated.NewBackend(alloc)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(commitInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sim.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
		require.NoError(t, sim.Close())
	})
	return sim.Client()
}

// WriteHardhatArtifact writes dir/<source>/<name>.json in hardhat's layout.
func WriteHardhatArtifact(t *testing.T, dir, source, name, bytecode string) string {
	t.Helper()
	return writeJSON(t, filepath.Join(dir, filepath.FromSlash(source), name+".json"), map[string]any{
		"_format":                "hh-sol-artifact-1",
		"contractName":           name,
		"sourceName":             source,
		"abi":                    []any{},
		"bytecode":               bytecode,
		"deployedBytecode":       "0x",
		"linkReferences":         map[string]any{},
		"deployedLinkReferences": map[string]any{},
	})
}

// WriteFoundryArtifact writes dir/<file>/<name>.json in forge's layout.
func WriteFoundryArtifact(t *testing.T, dir, file, name, bytecode string) string {
	t.Helper()
	return writeJSON(t, filepath.Join(dir, file, name+".json"), map[string]any{
		"abi": []any{
			map[string]any{"type": "constructor", "inputs": []any{}, "stateMutability": "nonpayable"},
		},
		"bytecode":         map[string]any{"object": bytecode, "linkReferences": map[string]any{}},
		"deployedBytecode": map[string]any{"object": "0x"},
	})
}

func writeJSON(t *testing.T, path string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
