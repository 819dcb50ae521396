package rpc

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/DropIndexor/internal/common"
)

var (
	// Providers word their eth_getLogs limits differently, e.g.
	//   "Query returned more than 10000 results. Try with this block range [0x7dfd25, 0x7e0fcc]."
	//   "Log response size exceeded. ... this block range should work: [0x1, 0x2]"
	tooManyResultsRe = regexp.MustCompile(`(?i)(returned more than \d+ results|log response size exceeded|` +
		`block range is too (large|wide)|exceed(s|ed)? maximum block range)`)
	suggestedRangeRe = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)
)

// RangeHint describes a block range a node suggested after refusing an eth_getLogs query.
type RangeHint struct {
	From, To uint64
	// Suggested is false when the node refused the query without proposing a range.
	Suggested bool
}

// TooManyResults reports whether err is a node refusing an eth_getLogs query because
// the result would be too large, together with the range the node proposed, if any.
func TooManyResults(err error) (RangeHint, bool) {
	if err == nil {
		return RangeHint{}, false
	}

	msg := err.Error()
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		msg = fmt.Sprintf("%s %v", msg, dataErr.ErrorData())
	}

	if !tooManyResultsRe.MatchString(msg) {
		return RangeHint{}, false
	}

	hint, ok := parseSuggestedRange(msg)
	if !ok {
		return RangeHint{}, true
	}

	return hint, true
}

func parseSuggestedRange(msg string) (RangeHint, bool) {
	const expectedMatches = 3
	matches := suggestedRangeRe.FindStringSubmatch(msg)
	if len(matches) != expectedMatches {
		return RangeHint{}, false
	}

	from, err := common.ParseBlockNumber(matches[1])
	if err != nil {
		return RangeHint{}, false
	}
	to, err := common.ParseBlockNumber(matches[2])
	if err != nil || to < from {
		return RangeHint{}, false
	}

	return RangeHint{From: from, To: to, Suggested: true}, true
}

// Within reports whether the hint narrows [from, to] without skipping its first block.
func (h RangeHint) Within(from, to uint64) bool {
	return h.Suggested && h.From == from && h.To < to
}
