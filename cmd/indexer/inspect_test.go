package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	internalstore "github.com/goran-ethernal/DropIndexor/internal/store"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var inspectedCollection = common.HexToAddress("0xC0fFee0000000000000000000000000000000aBc")

func newInspectStore(t *testing.T) *internalstore.MemoryStore {
	t.Helper()

	st := internalstore.NewMemoryStore()
	for i, name := range []string{"First", "Second"} {
		block := uint64(i+1) * 10
		require.NoError(t, st.Save(store.WithBlock(context.Background(), block), &schema.Collection{
			ID:   schema.AddressID(inspectedCollection),
			Kind: "vapour721a",
			Name: name,
		}))
	}

	return st
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name        string
		opts        inspectOptions
		contains    []string
		notContains []string
		errorMsg    string
	}{
		{
			name:     "lists ids",
			opts:     inspectOptions{entityType: "Collection"},
			contains: []string{schema.AddressID(inspectedCollection)},
		},
		{
			name:        "latest version by checksummed address",
			opts:        inspectOptions{entityType: "Collection", id: inspectedCollection.Hex()},
			contains:    []string{`"name": "Second"`},
			notContains: []string{`"name": "First"`},
		},
		{
			name:     "history",
			opts:     inspectOptions{entityType: "Collection", id: schema.AddressID(inspectedCollection), history: true},
			contains: []string{`"block": 10`, `"block": 20`, `"name": "First"`},
		},
		{
			name:     "unknown type",
			opts:     inspectOptions{entityType: "Drop"},
			errorMsg: `unknown entity type "Drop"`,
		},
		{
			name:     "missing entity",
			opts:     inspectOptions{entityType: "Holder", id: inspectedCollection.Hex()},
			errorMsg: "Holder " + schema.AddressID(inspectedCollection) + " not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.SetContext(context.Background())

			var out bytes.Buffer
			err := inspect(cmd, newInspectStore(t), tt.opts, &out)
			if tt.errorMsg != "" {
				require.ErrorContains(t, err, tt.errorMsg)
				return
			}

			require.NoError(t, err)
			for _, s := range tt.contains {
				require.Contains(t, out.String(), s)
			}
			for _, s := range tt.notContains {
				require.NotContains(t, out.String(), s)
			}
		})
	}
}
