package db

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Default = meddler.SQLite
	meddler.Register("hash", HashMeddler{})
}

// HashMeddler stores common.Hash and *common.Hash columns as 0x-prefixed hex text.
// NULL reads back as the zero hash, or nil for pointers.
type HashMeddler struct{}

// PreRead implements meddler.Meddler.
func (HashMeddler) PreRead(any) (any, error) {
	return new(sql.NullString), nil
}

// PostRead implements meddler.Meddler.
func (HashMeddler) PostRead(fieldAddr, scanTarget any) error {
	raw, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("hash meddler: unexpected scan target %T", scanTarget)
	}

	switch field := fieldAddr.(type) {
	case *common.Hash:
		*field = common.Hash{}
		if raw.Valid {
			*field = common.HexToHash(raw.String)
		}
	case **common.Hash:
		*field = nil
		if raw.Valid {
			h := common.HexToHash(raw.String)
			*field = &h
		}
	default:
		return fmt.Errorf("hash meddler: unsupported field %T", fieldAddr)
	}

	return nil
}

// PreWrite implements meddler.Meddler.
func (HashMeddler) PreWrite(field any) (any, error) {
	switch value := field.(type) {
	case common.Hash:
		return value.Hex(), nil
	case *common.Hash:
		if value == nil {
			return nil, nil
		}
		return value.Hex(), nil
	default:
		return nil, fmt.Errorf("hash meddler: unsupported field %T", field)
	}
}
