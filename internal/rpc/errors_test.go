package rpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data any
}

func (e *dataError) Error() string  { return e.msg }
func (e *dataError) ErrorData() any { return e.data }

func TestTooManyResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantHit  bool
		wantHint RangeHint
	}{
		{
			name: "nil",
		},
		{
			name: "unrelated error",
			err:  errors.New("execution reverted"),
		},
		{
			name: "limit in error data with suggested range",
			err: &dataError{
				msg:  "invalid params",
				data: "Query returned more than 10000 results. Try with this block range [0x7dfd25, 0x7e0fcc].",
			},
			wantHit:  true,
			wantHint: RangeHint{From: 0x7dfd25, To: 0x7e0fcc, Suggested: true},
		},
		{
			name: "limit in message behind a wrapper",
			err: fmt.Errorf("eth_getLogs: %w",
				errors.New("Log response size exceeded. this block range should work: [0x10,   0x20]")),
			wantHit:  true,
			wantHint: RangeHint{From: 0x10, To: 0x20, Suggested: true},
		},
		{
			name:    "limit without a range",
			err:     errors.New("block range is too wide"),
			wantHit: true,
		},
		{
			name:    "inverted range is ignored",
			err:     errors.New("query returned more than 5 results [0x20, 0x10]"),
			wantHit: true,
		},
		{
			name:    "malformed range is ignored",
			err:     errors.New("query returned more than 5 results [0xZZ, 0x10]"),
			wantHit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hint, hit := TooManyResults(tt.err)
			require.Equal(t, tt.wantHit, hit)
			require.Equal(t, tt.wantHint, hint)
		})
	}
}

func TestRangeHintWithin(t *testing.T) {
	t.Parallel()

	hint := RangeHint{From: 100, To: 150, Suggested: true}

	require.True(t, hint.Within(100, 200))
	require.False(t, hint.Within(90, 200), "hint skips the first block")
	require.False(t, hint.Within(100, 150), "hint does not narrow the range")
	require.False(t, RangeHint{From: 100, To: 120}.Within(100, 200), "nothing was suggested")
}
