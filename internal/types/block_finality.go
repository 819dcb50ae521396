package types

import (
	"context"
	"fmt"
	"strings"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// BlockFinality is the block tag the indexer treats as final.
type BlockFinality string

const (
	FinalityFinalized BlockFinality = "finalized"
	FinalitySafe      BlockFinality = "safe"

	// FinalityLatest follows the head, optionally lagging a number of blocks behind
	FinalityLatest BlockFinality = "latest"
)

func (f BlockFinality) String() string {
	return string(f)
}

func (f BlockFinality) IsValid() bool {
	switch f {
	case FinalityFinalized, FinalitySafe, FinalityLatest:
		return true
	default:
		return false
	}
}

// ParseBlockFinality parses s, ignoring case and surrounding spaces.
func ParseBlockFinality(s string) (BlockFinality, error) {
	f := BlockFinality(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("invalid block finality %q, must be one of: finalized, safe, latest", s)
	}
	return f, nil
}

// HeadReader is the part of the RPC client needed to resolve a finality tag.
type HeadReader interface {
	GetFinalizedBlockHeader(ctx context.Context) (*ethtypes.Header, error)
	GetSafeBlockHeader(ctx context.Context) (*ethtypes.Header, error)
	GetLatestBlockHeader(ctx context.Context) (*ethtypes.Header, error)
	GetBlockHeader(ctx context.Context, number uint64) (*ethtypes.Header, error)
}

// Head returns the newest block considered final. lag only applies to FinalityLatest
// and is clamped at genesis.
func (f BlockFinality) Head(ctx context.Context, client HeadReader, lag uint64) (*ethtypes.Header, error) {
	switch f {
	case FinalityFinalized:
		return client.GetFinalizedBlockHeader(ctx)
	case FinalitySafe:
		return client.GetSafeBlockHeader(ctx)
	case FinalityLatest:
	default:
		return nil, fmt.Errorf("invalid finality mode: %s", f)
	}

	latest, err := client.GetLatestBlockHeader(ctx)
	if err != nil || lag == 0 {
		return latest, err
	}

	head := latest.Number.Uint64()
	return client.GetBlockHeader(ctx, head-min(head, lag))
}
