package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/stretchr/testify/require"
)

// evmNumber reads number() from a contract deployed in cfg's state
func evmNumber(t *testing.T, a *Artifact, addr common.Address, cfg *runtime.Config) *big.Int {
	t.Helper()
	input, err := a.Pack("number")
	require.NoError(t, err)
	out, _, err := runtime.Call(addr, input, cfg)
	require.NoError(t, err)
	values, err := a.Unpack("number", out)
	require.NoError(t, err)
	require.Len(t, values, 1)
	return values[0].(*big.Int)
}

func evmTransact(t *testing.T, a *Artifact, addr common.Address, cfg *runtime.Config, method string, args ...interface{}) {
	t.Helper()
	input, err := a.Pack(method, args...)
	require.NoError(t, err)
	_, _, err = runtime.Call(addr, input, cfg)
	require.NoError(t, err, method)
}

func TestIncrementer_ExecutesInEVM(t *testing.T) {
	a, err := Incrementer()
	require.NoError(t, err)

	tests := []struct {
		name    string
		initial int64
		step    int64
	}{
		{"documented arguments", 5, 2},
		{"zero constructor argument", 0, 3},
		{"zero increment", 9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &runtime.Config{}

			input, err := a.DeployInput(big.NewInt(tt.initial))
			require.NoError(t, err)
			code, addr, _, err := runtime.Create(input, cfg)
			require.NoError(t, err)
			require.Equal(t, common.FromHex(IncrementerRuntime), code, "deployed code must be the embedded runtime")
			require.Equal(t, code, cfg.State.GetCode(addr))

			require.Equal(t, 0, evmNumber(t, a, addr, cfg).Cmp(big.NewInt(tt.initial)), "number() after deploy")

			evmTransact(t, a, addr, cfg, "increment", big.NewInt(tt.step))
			require.Equal(t, 0, evmNumber(t, a, addr, cfg).Cmp(big.NewInt(tt.initial+tt.step)), "number() after increment")

			evmTransact(t, a, addr, cfg, "reset")
			require.Zero(t, evmNumber(t, a, addr, cfg).Sign(), "number() after reset")
		})
	}
}
