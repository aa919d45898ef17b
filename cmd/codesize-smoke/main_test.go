package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"github.com/tkmct/substrate-smoke/smoke"
	"github.com/tkmct/substrate-smoke/substrate"
	"github.com/tkmct/substrate-smoke/substrate/substratetest"
)

func codeKey(addr common.Address) []byte {
	key := common.CopyBytes(substrate.EVMAccountCodesPrefix)
	key = append(key, make([]byte, 16)...)
	return append(key, addr.Bytes()...)
}

func code(size int) []byte {
	return substrate.EncodeBytes(bytes.Repeat([]byte{0x60}, size))
}

func newNode(t *testing.T, contracts int) (*substratetest.Node, *substrate.Client) {
	node := substratetest.NewNode(500)
	node.SetFinalized(480)
	for i := 0; i < contracts; i++ {
		addr := common.BytesToAddress([]byte{0x10, byte(i >> 8), byte(i)})
		node.SetStorage(codeKey(addr), code(100+i))
	}
	node.SetStorage(substrate.StorageKey("System", "Number"), []byte{0x01})
	return node, node.Dial(t, substrate.ClientConfig{})
}

func TestRunSuitesPasses(t *testing.T) {
	color.NoColor = true
	node, client := newNode(t, 1200)

	cfg := defaultConfig()
	out := new(bytes.Buffer)
	require.NoError(t, runSuites(context.Background(), client, cfg, out))
	require.Contains(t, out.String(), "Verified 1200 total account codes (at #480)")
	require.Contains(t, out.String(), "All smoke checks passed.")

	// Three key pages (500, 500, 200) plus the empty one, three value batches.
	require.Equal(t, 4, node.KeysPagedCalls())
	require.Equal(t, 3, node.QueryStorageCalls())
	require.Equal(t, 1200, node.ValuesServed())
}

func TestRunSuitesFlagsOversizedCode(t *testing.T) {
	color.NoColor = true
	node, client := newNode(t, 3)
	offender := common.HexToAddress("0x000000000000000000000000000000000000beef")
	node.SetStorage(codeKey(offender), code(smoke.MaxCodeSize+1))

	cfg := defaultConfig()
	pinned := uint64(300)
	cfg.BlockNumber = &pinned
	out := new(bytes.Buffer)

	err := runSuites(context.Background(), client, cfg, out)
	require.ErrorIs(t, err, smoke.ErrOversizedCode)
	require.Contains(t, err.Error(), "accountId: "+offender.Hex()+" - 24577 bytes")
	require.Contains(t, out.String(), "Smoke checks failed.")
}

func TestRunSuitesNodeError(t *testing.T) {
	color.NoColor = true
	node, client := newNode(t, 3)
	node.Fail("state_getKeysPaged", os.ErrDeadlineExceeded)

	err := runSuites(context.Background(), client, defaultConfig(), new(bytes.Buffer))
	require.ErrorContains(t, err, "state_getKeysPaged")
}

func TestSetupLoggingFile(t *testing.T) {
	prev := log.Root()
	t.Cleanup(func() { log.SetDefault(prev) })

	file := filepath.Join(t.TempDir(), "smoke.log")
	closer, err := setupLogging(LogConfig{Verbosity: 3, Format: "logfmt", File: file, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)

	log.Info("Scan progress", "keys", 10)
	log.Debug("Hidden at info level")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), `msg="Scan progress"`)
	require.Contains(t, string(data), "keys=10")
	require.NotContains(t, string(data), "Hidden at info level")
}

func TestSetupLoggingUnknownFormat(t *testing.T) {
	_, err := setupLogging(LogConfig{Format: "xml"})
	require.EqualError(t, err, `unknown log format "xml"`)
}
