package fetcher

import (
	"maps"
	"slices"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// cachedSource holds the verified logs of one contract over the ranges already fetched
// with the filter in src.
type cachedSource struct {
	src      source
	coverage []CoverageRange
	logs     []types.Log
}

// logCache keeps the logs fetched since the last checkpoint. A range fetched again after
// the filter grew is served from it for every contract it already covers, so only the
// new contracts are queried on the node.
type logCache struct {
	mu      sync.Mutex
	sources map[ethcommon.Address]*cachedSource
}

func newLogCache() *logCache {
	return &logCache{sources: make(map[ethcommon.Address]*cachedSource)}
}

// lookup returns the cached logs of address in [from, to]. It reports false when part of the
// range was never fetched or when src asks for logs the cached ones were not filtered for.
func (c *logCache) lookup(address ethcommon.Address, src source, from, to uint64) ([]types.Log, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.sources[address]
	if !ok || !IsCovered(from, to, entry.coverage) || entry.src.startBlock > src.startBlock {
		return nil, false
	}
	for topic := range src.topics {
		if _, ok := entry.src.topics[topic]; !ok {
			return nil, false
		}
	}

	var logs []types.Log
	for _, l := range entry.logs {
		if l.BlockNumber < max(from, src.startBlock) || l.BlockNumber > to {
			continue
		}
		if _, ok := src.topics[l.Topics[0]]; ok {
			logs = append(logs, l)
		}
	}

	return logs, true
}

// store records the logs of [from, to] for every address of filter. Logs of other addresses are ignored.
// An address fetched with a different filter starts over.
func (c *logCache) store(filter filterSnapshot, logs []types.Log, from, to uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, addr := range filter.addresses {
		src := filter.sources[addr]

		entry, ok := c.sources[addr]
		if !ok || entry.src.startBlock != src.startBlock || !maps.Equal(entry.src.topics, src.topics) {
			entry = &cachedSource{src: src}
			c.sources[addr] = entry
		}

		entry.logs = slices.DeleteFunc(entry.logs, func(l types.Log) bool {
			return l.BlockNumber >= from && l.BlockNumber <= to
		})
		for _, l := range logs {
			if l.Address == addr {
				entry.logs = append(entry.logs, l)
			}
		}
		entry.coverage = AddCoverage(entry.coverage, from, to)
	}

	CachedLogsSet(c.countLocked())
}

// invalidate drops everything at and after fromBlock.
func (c *logCache) invalidate(fromBlock uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.retainLocked(func(l types.Log) bool { return l.BlockNumber < fromBlock },
		func(cov []CoverageRange) []CoverageRange { return CoverageBefore(cov, fromBlock) })
}

// prune drops everything at and before block.
func (c *logCache) prune(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.retainLocked(func(l types.Log) bool { return l.BlockNumber > block },
		func(cov []CoverageRange) []CoverageRange { return CoverageAfter(cov, block) })
}

func (c *logCache) retainLocked(keep func(types.Log) bool, trim func([]CoverageRange) []CoverageRange) {
	for addr, entry := range c.sources {
		entry.coverage = trim(entry.coverage)
		if len(entry.coverage) == 0 {
			delete(c.sources, addr)
			continue
		}
		entry.logs = slices.DeleteFunc(entry.logs, func(l types.Log) bool { return !keep(l) })
	}

	CachedLogsSet(c.countLocked())
}

func (c *logCache) countLocked() int {
	var n int
	for _, entry := range c.sources {
		n += len(entry.logs)
	}
	return n
}
