package smoke

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/stretchr/testify/require"
)

func newTestSuite(node *fakeNode, cfg CodeSizeConfig) (*CodeSizeSuite, *bytes.Buffer) {
	logger, buf := bufferLogger()
	s := NewCodeSizeSuite(node, cfg, logger)
	s.clock = new(mclock.Simulated)
	s.memory = fixedMemory
	return s, buf
}

func TestCodeSizeSuiteNoContracts(t *testing.T) {
	node := newFakeNode()
	s, _ := newTestSuite(node, DefaultCodeSizeConfig)
	results := NewResults(new(bytes.Buffer))

	require.NoError(t, s.Run(context.Background(), results))
	require.Equal(t, 1, results.Passed)
	require.Equal(t, "Verified 0 total account codes (at #1234)", results.Checks[0].Message)
	require.Equal(t, 1, node.pageCalls)
	require.Zero(t, node.queryCalls)
}

func TestCodeSizeSuitePasses(t *testing.T) {
	node := newFakeNode()
	node.addContracts(1200, 2000)
	s, logs := newTestSuite(node, DefaultCodeSizeConfig)
	results := NewResults(new(bytes.Buffer))

	require.NoError(t, s.Run(context.Background(), results))
	require.Equal(t, "Verified 1200 total account codes (at #1234)", results.Checks[0].Message)
	require.Contains(t, logs.String(), "Finished querying EVM.AccountCodes storage keys")
	require.Contains(t, logs.String(), "Finished checking EVM.AccountCodes storage values")
	require.Equal(t, 1200, len(node.queried))
}

func TestCodeSizeSuiteFlagsOversizedCode(t *testing.T) {
	node := newFakeNode()
	offender := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	node.set(testCodeKey(offender), testCode(MaxCodeSize+1))

	s, _ := newTestSuite(node, DefaultCodeSizeConfig)
	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	require.Equal(t, []FailureRecord{{AccountID: offender, CodeSize: 24577}}, report.Failures)

	results := NewResults(new(bytes.Buffer))
	err = s.Run(context.Background(), results)
	require.ErrorIs(t, err, ErrOversizedCode)

	var caseErr *CaseError
	require.True(t, errors.As(err, &caseErr))
	require.Equal(t, CodeSizeSuiteID, caseErr.Suite)
	require.Equal(t, CodeSizeCaseID, caseErr.Case)
	require.Equal(t, 1, results.Failed)
	require.Contains(t, results.Checks[0].Message, "accountId: "+offender.Hex()+" - 24577 bytes")
}

func TestCodeSizeSuitePinnedBlock(t *testing.T) {
	node := newFakeNode()
	node.addContracts(3, 1)
	pinned := uint64(99)
	cfg := DefaultCodeSizeConfig
	cfg.BlockNumber = &pinned

	s, _ := newTestSuite(node, cfg)
	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(99), report.Anchor.Number)
}

func TestCodeSizeSuiteAbortsOnRPCError(t *testing.T) {
	node := newFakeNode()
	node.addContracts(3, 1)
	node.queryErr = errors.New("node went away")

	s, _ := newTestSuite(node, DefaultCodeSizeConfig)
	results := NewResults(new(bytes.Buffer))
	err := s.Run(context.Background(), results)
	require.ErrorIs(t, err, node.queryErr)
	require.Equal(t, 1, results.Failed)
}

func TestReportAssert(t *testing.T) {
	r := &Report{MaxCodeSize: MaxCodeSize}
	require.NoError(t, r.Assert())

	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	r.Failures = []FailureRecord{{AccountID: a, CodeSize: 30000}, {AccountID: b, CodeSize: 24577}}
	err := r.Assert()
	require.ErrorIs(t, err, ErrOversizedCode)
	require.EqualError(t, err, "failed account codes (too long): accountId: "+a.Hex()+" - 30000 bytes, accountId: "+b.Hex()+" - 24577 bytes")
}

func TestResultsPrint(t *testing.T) {
	out := new(bytes.Buffer)
	results := NewResults(out)
	results.Pass("S600C100", "ok")
	results.Print()
	require.Contains(t, out.String(), "✓ S600C100: ok")
	require.Contains(t, out.String(), "All smoke checks passed.")

	out.Reset()
	results.Fail("S600C100", "too long")
	results.Print()
	require.Contains(t, out.String(), "✗ S600C100: too long")
	require.Contains(t, out.String(), "Smoke checks failed.")
}
