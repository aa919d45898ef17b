package substrate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

func TestTwox128(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"System", "0x26aa394eea5630e07c48ae0c9558cef7"},
		{"Account", "0xb99d880ec681799c0cf30e8886371da9"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, hexutil.Encode(Twox128([]byte(tt.input))))
		})
	}
}

func TestStorageKey(t *testing.T) {
	require.Equal(t,
		"0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9",
		hexutil.Encode(StorageKey("System", "Account")))
	require.Equal(t,
		"0x1da53b775b270400e7e61ed5cbc5a146ea70f53d5a3306ce02aaf97049cf181a",
		hexutil.Encode(EVMAccountCodesPrefix))
}

func TestAccountIDFromKey(t *testing.T) {
	addr := common.HexToAddress("0x7d40d3e6b1ef8bec2c4c38bb4a4a0e3ab1b7c47c")
	key := append(common.CopyBytes(EVMAccountCodesPrefix), make([]byte, 16)...)
	key = append(key, addr.Bytes()...)

	require.True(t, HasKeyPrefix(key, EVMAccountCodesPrefix))
	require.Equal(t, addr, AccountIDFromKey(key))
	require.False(t, HasKeyPrefix(addr.Bytes(), EVMAccountCodesPrefix))
}
