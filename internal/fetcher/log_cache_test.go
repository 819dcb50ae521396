package fetcher

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func testFilter(startBlock uint64) filterSnapshot {
	return filterSnapshot{
		addresses: []common.Address{testAddr1},
		topics:    []common.Hash{testTopic1},
		sources: map[common.Address]source{
			testAddr1: {topics: map[common.Hash]struct{}{testTopic1: {}}, startBlock: startBlock},
		},
	}
}

func TestLogCache_Lookup(t *testing.T) {
	headers := createTestHeaders(100, 110)
	filter := testFilter(0)

	c := newLogCache()
	c.store(filter, []types.Log{
		testLog(headers[1], testAddr1, testTopic1, 0),
		testLog(headers[6], testAddr1, testTopic1, 0),
		// other contracts are not recorded
		testLog(headers[2], testAddr2, testTopic1, 0),
	}, 100, 110)

	logs, ok := c.lookup(testAddr1, filter.sources[testAddr1], 102, 110)
	require.True(t, ok)
	require.Len(t, logs, 1)
	require.Equal(t, uint64(106), logs[0].BlockNumber)

	_, ok = c.lookup(testAddr2, filter.sources[testAddr1], 100, 110)
	require.False(t, ok)

	_, ok = c.lookup(testAddr1, filter.sources[testAddr1], 105, 111)
	require.False(t, ok, "range past the coverage")

	wider := source{topics: map[common.Hash]struct{}{testTopic1: {}, testTopic2: {}}}
	_, ok = c.lookup(testAddr1, wider, 100, 110)
	require.False(t, ok, "topics the logs were not filtered for")

	// a later start block narrows the cached logs
	later := source{topics: filter.sources[testAddr1].topics, startBlock: 103}
	logs, ok = c.lookup(testAddr1, later, 100, 110)
	require.True(t, ok)
	require.Len(t, logs, 1)
}

func TestLogCache_StoreResetsOnFilterChange(t *testing.T) {
	headers := createTestHeaders(100, 110)

	c := newLogCache()
	c.store(testFilter(50), []types.Log{testLog(headers[1], testAddr1, testTopic1, 0)}, 100, 105)

	// the source was lowered to an earlier start block: older coverage is no longer valid
	lowered := testFilter(10)
	c.store(lowered, nil, 106, 110)

	_, ok := c.lookup(testAddr1, lowered.sources[testAddr1], 100, 110)
	require.False(t, ok)

	logs, ok := c.lookup(testAddr1, lowered.sources[testAddr1], 106, 110)
	require.True(t, ok)
	require.Empty(t, logs)
}

func TestLogCache_InvalidateAndPrune(t *testing.T) {
	headers := createTestHeaders(100, 110)
	filter := testFilter(0)
	src := filter.sources[testAddr1]

	c := newLogCache()
	c.store(filter, []types.Log{
		testLog(headers[2], testAddr1, testTopic1, 0),
		testLog(headers[8], testAddr1, testTopic1, 0),
	}, 100, 110)

	c.invalidate(107)
	_, ok := c.lookup(testAddr1, src, 100, 107)
	require.False(t, ok)
	logs, ok := c.lookup(testAddr1, src, 100, 106)
	require.True(t, ok)
	require.Len(t, logs, 1)

	c.prune(103)
	_, ok = c.lookup(testAddr1, src, 100, 106)
	require.False(t, ok)
	logs, ok = c.lookup(testAddr1, src, 104, 106)
	require.True(t, ok)
	require.Empty(t, logs)

	c.prune(106)
	require.Empty(t, c.sources)
}
