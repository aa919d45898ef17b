package smoke

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tkmct/substrate-smoke/substrate"
)

const (
	CodeSizeSuiteID    = "S600"
	CodeSizeSuiteTitle = "Ethereum contract bytecode should not be large"
	CodeSizeCaseID     = "C100"
	CodeSizeCaseTitle  = "should not have excessively long account codes"

	// DefaultPageSize keeps a page of values under the node's 15 MiB response
	// limit even if every contract were at the size limit.
	DefaultPageSize = 500

	// DefaultSuiteTimeout bounds the whole scan.
	DefaultSuiteTimeout = 30 * time.Minute
)

// Node is the chain access the code size suite needs.
type Node interface {
	StorageReader
	ResolveAnchor(ctx context.Context, number *uint64) (*substrate.BlockAnchor, error)
}

// CodeSizeConfig controls a code size scan.
type CodeSizeConfig struct {
	PageSize    int
	MaxCodeSize int
	BlockNumber *uint64 // nil pins the scan to the finalized head
	Timeout     time.Duration
}

// DefaultCodeSizeConfig mirrors the limits of the EVM pallet.
var DefaultCodeSizeConfig = CodeSizeConfig{
	PageSize:    DefaultPageSize,
	MaxCodeSize: MaxCodeSize,
	Timeout:     DefaultSuiteTimeout,
}

// CodeSizeSuite checks that no EVM.AccountCodes entry exceeds the contract
// size limit.
type CodeSizeSuite struct {
	cfg    CodeSizeConfig
	node   Node
	logger log.Logger
	clock  mclock.Clock
	memory func() MemoryStats
}

// NewCodeSizeSuite creates the suite for the given node.
func NewCodeSizeSuite(node Node, cfg CodeSizeConfig, logger log.Logger) *CodeSizeSuite {
	if logger == nil {
		logger = log.Root()
	}
	return &CodeSizeSuite{
		cfg:    cfg,
		node:   node,
		logger: logger.New("suite", CodeSizeSuiteID),
		clock:  mclock.System{},
		memory: SampleMemory,
	}
}

// Scan enumerates every EVM.AccountCodes key at the anchor block and checks
// the size of the code stored under each one.
func (s *CodeSizeSuite) Scan(ctx context.Context) (*Report, error) {
	anchor, err := s.node.ResolveAnchor(ctx, s.cfg.BlockNumber)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Using anchor block", "number", anchor.Number, "hash", anchor.Hash)

	keysProgress := newProgress(s.logger, s.clock, s.memory, "keys", s.cfg.PageSize, 0)
	keys, err := EnumerateKeys(ctx, s.node, substrate.EVMAccountCodesPrefix, s.cfg.PageSize, anchor.Hash, keysProgress)
	if err != nil {
		return nil, err
	}
	elapsed := keysProgress.Elapsed()
	scanPhaseDuration.Update(elapsed)
	found := len(keys)
	s.logger.Info("Finished querying EVM.AccountCodes storage keys", "keys", found, "elapsed", formatElapsed(elapsed))

	checkProgress := newProgress(s.logger, s.clock, s.memory, "accounts", s.cfg.PageSize, found)
	res, err := VerifyCodeSizes(ctx, s.node, keys, s.cfg.PageSize, s.cfg.MaxCodeSize, anchor.Hash, checkProgress)
	if err != nil {
		return nil, err
	}
	elapsed = checkProgress.Elapsed()
	scanPhaseDuration.Update(elapsed)
	s.logger.Info("Finished checking EVM.AccountCodes storage values", "accounts", res.Checked, "largest", res.Largest, "elapsed", formatElapsed(elapsed))

	return &Report{
		Anchor:      *anchor,
		KeysFound:   found,
		Checked:     res.Checked,
		Largest:     res.Largest,
		MaxCodeSize: s.cfg.MaxCodeSize,
		Failures:    res.Failures,
	}, nil
}

// Run executes the suite within its timeout and records the case outcome.
func (s *CodeSizeSuite) Run(ctx context.Context, results *Results) error {
	name := fmt.Sprintf("%s%s %s", CodeSizeSuiteID, CodeSizeCaseID, CodeSizeCaseTitle)
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	report, err := s.Scan(ctx)
	if err == nil {
		err = report.Assert()
	}
	if err != nil {
		results.Fail(name, err.Error())
		return &CaseError{Suite: CodeSizeSuiteID, Case: CodeSizeCaseID, Err: err}
	}
	msg := fmt.Sprintf("Verified %d total account codes (at #%d)", report.Checked, report.Anchor.Number)
	s.logger.Info(msg)
	results.Pass(name, msg)
	return nil
}
