package framework_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allo-protocol/allo-deployer/framework"
)

func TestPrivKey(t *testing.T) {
	key, err := framework.NewPrivKeyFromHex("0x" + framework.DefaultPrivateKeyHex)
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", key.Address().Hex())

	_, err = framework.NewPrivKeyFromHex("0x1234")
	require.Error(t, err)

	a, b := framework.GeneratePrivKey(), framework.GeneratePrivKey()
	require.NotEqual(t, a.Address(), b.Address())
}
