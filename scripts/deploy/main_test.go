package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/allo-protocol/allo-deployer/deploy"
	"github.com/allo-protocol/allo-deployer/framework"
	"github.com/allo-protocol/allo-deployer/framework/frameworktest"
)

const (
	strategyPrefix = "RFPSimpleStrategy deployed to: "
	alloPrefix     = "Allo deployed to: "
)

type stubResolver map[string]error

func (s stubResolver) ResolveFactory(name string) (deploy.Factory, error) {
	err, ok := s[name]
	if !ok {
		return nil, &framework.ArtifactNotFoundError{Name: name, Err: errors.New("no artifact matches")}
	}
	return stubFactory{name: name, err: err}, nil
}

type stubFactory struct {
	name string
	err  error
}

func (f stubFactory) DeployAndConfirm(context.Context, ...interface{}) (deploy.Deployment, error) {
	if f.err != nil {
		return deploy.Deployment{}, &framework.DeploymentError{Contract: f.name, Err: f.err}
	}
	return deploy.Deployment{Contract: f.name, Address: common.BytesToAddress([]byte(f.name))}, nil
}

func outputLines(out *bytes.Buffer) []string {
	s := strings.TrimRight(out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestDeployAllPrintsBothAddresses(t *testing.T) {
	var out bytes.Buffer
	err := deployAll(context.Background(), stubResolver{"RFPSimpleStrategy": nil, "Allo": nil}, 1, nil, &out, testLog())
	require.NoError(t, err)

	lines := outputLines(&out)
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], strategyPrefix), lines[0])
	require.True(t, strings.HasPrefix(lines[1], alloPrefix), lines[1])
}

func TestDeployAllMissingStrategy(t *testing.T) {
	var out bytes.Buffer
	err := deployAll(context.Background(), stubResolver{"Allo": nil}, 1, nil, &out, testLog())

	require.Empty(t, outputLines(&out))
	var notFound *framework.ArtifactNotFoundError
	require.ErrorAs(t, err, &notFound)
	var stepErr *deploy.Error
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, deploy.KindArtifactNotFound, stepErr.Kind)
}

func TestDeployAllFailingAllo(t *testing.T) {
	for name, resolver := range map[string]stubResolver{
		"unresolved": {"RFPSimpleStrategy": nil},
		"reverted":   {"RFPSimpleStrategy": nil, "Allo": errors.New("execution reverted")},
	} {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			err := deployAll(context.Background(), resolver, 1, nil, &out, testLog())
			require.Error(t, err)

			lines := outputLines(&out)
			require.Len(t, lines, 1)
			require.True(t, strings.HasPrefix(lines[0], strategyPrefix), lines[0])
		})
	}
}

func TestDeployAllOnSimulatedChain(t *testing.T) {
	key, err := framework.NewPrivKeyFromHex(frameworktest.DevKeyHex)
	require.NoError(t, err)
	client := frameworktest.NewChain(t, key.Address())

	dir := t.TempDir()
	frameworktest.WriteHardhatArtifact(t, dir, "contracts/strategies/rfp-simple/RFPSimpleStrategy.sol", "RFPSimpleStrategy", frameworktest.StoreCode)
	frameworktest.WriteHardhatArtifact(t, dir, "contracts/core/Allo.sol", "Allo", frameworktest.StoreCode)

	cfg := &framework.Config{
		RPCEndpoint:     "simulated",
		SignerKey:       frameworktest.DevKeyHex,
		ChainID:         frameworktest.ChainID.Uint64(),
		ArtifactsDir:    dir,
		ConfirmTimeout:  20 * time.Second,
		DeploymentsFile: filepath.Join(dir, "deployments.json"),
	}
	fr, err := framework.NewWithBackend(cfg, testLog(), client)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	book := framework.NewDeploymentBook(cfg.DeploymentsFile)
	require.NoError(t, deployAll(ctx, fr, fr.ChainID(), book, &out, testLog()))

	lines := outputLines(&out)
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], strategyPrefix), lines[0])
	require.True(t, strings.HasPrefix(lines[1], alloPrefix), lines[1])

	recorded, err := framework.LoadBook(cfg.DeploymentsFile)
	require.NoError(t, err)
	rec, ok := recorded.Lookup(cfg.ChainID, "Allo")
	require.True(t, ok)
	require.Equal(t, alloPrefix+rec.Address.Hex(), lines[1])
}

func TestRunUnreachableNode(t *testing.T) {
	cfg := &framework.Config{
		RPCEndpoint: "http://127.0.0.1:1",
		SignerKey:   frameworktest.DevKeyHex,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.Error(t, run(ctx, cfg, &out, testLog()))
	require.Empty(t, out.String())
}
