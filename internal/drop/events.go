package drop

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
)

var (
	//go:embed abi/factory.json
	factoryABIJSON []byte

	//go:embed abi/common.json
	collectionABIJSON []byte

	//go:embed abi/vapour721a.json
	vapourABIJSON []byte

	//go:embed abi/rain721a.json
	rainABIJSON []byte
)

var (
	factoryABI    = mustParseABI("factory", factoryABIJSON)
	collectionABI = mustParseABI("collection", collectionABIJSON)
	vapourABI     = mustParseABI("vapour721a", vapourABIJSON)
	rainABI       = mustParseABI("rain721a", rainABIJSON)
)

// Event names, as they appear in IndexingFault records and metrics.
const (
	EventNewChild             = "NewChild"
	EventConstruct            = "Construct"
	EventInitialize           = "Initialize"
	EventOwnershipTransferred = "OwnershipTransferred"
	EventRecipientChanged     = "RecipientChanged"
	EventTransfer             = "Transfer"
	EventBuy                  = "Buy"
	EventWithdraw             = "Withdraw"
	EventRoleAdminChanged     = "RoleAdminChanged"
	EventRoleGranted          = "RoleGranted"
	EventRoleRevoked          = "RoleRevoked"
)

// Event signature hashes (topic 0).
var (
	NewChildTopic             = factoryABI.Events[EventNewChild].ID
	OwnershipTransferredTopic = collectionABI.Events[EventOwnershipTransferred].ID
	RecipientChangedTopic     = collectionABI.Events[EventRecipientChanged].ID
	TransferTopic             = collectionABI.Events[EventTransfer].ID
	BuyTopic                  = collectionABI.Events[EventBuy].ID
	WithdrawTopic             = collectionABI.Events[EventWithdraw].ID
	RoleAdminChangedTopic     = collectionABI.Events[EventRoleAdminChanged].ID
	RoleGrantedTopic          = collectionABI.Events[EventRoleGranted].ID
	RoleRevokedTopic          = collectionABI.Events[EventRoleRevoked].ID
	VapourInitializeTopic     = vapourABI.Events[EventInitialize].ID
	RainConstructTopic        = rainABI.Events[EventConstruct].ID
	RainInitializeTopic       = rainABI.Events[EventInitialize].ID
)

var errMalformedLog = errors.New("malformed log")

func mustParseABI(name string, def []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid %s ABI: %v", name, err))
	}
	return parsed
}

// collectionTopics returns the events a collection of the given kind is subscribed to.
func collectionTopics(kind string) []common.Hash {
	topics := []common.Hash{
		OwnershipTransferredTopic,
		RecipientChangedTopic,
		TransferTopic,
		BuyTopic,
		WithdrawTopic,
		RoleAdminChangedTopic,
		RoleGrantedTopic,
		RoleRevokedTopic,
	}

	switch kind {
	case config.CollectionKindRain721A:
		return append(topics, RainConstructTopic, RainInitializeTopic)
	default:
		return append(topics, VapourInitializeTopic)
	}
}

// StateConfig is the pricing program of a collection: opcode sources and their constants.
type StateConfig struct {
	Sources   [][]byte
	Constants []*big.Int
}

// NewChildEvent is emitted by a factory when it deploys a collection.
type NewChildEvent struct {
	Sender common.Address
	Child  common.Address
}

// VapourInitializeConfig is the configuration tuple of a Vapour721A Initialize event.
// Field order follows the on-chain tuple.
type VapourInitializeConfig struct {
	Name          string
	Symbol        string
	BaseURI       string
	SupplyLimit   *big.Int
	Recipient     common.Address
	Owner         common.Address
	Admin         common.Address
	RoyaltyBPS    *big.Int
	Currency      common.Address
	VmStateConfig StateConfig
}

// VapourInitializeEvent is emitted once by a Vapour721A collection when it is configured.
type VapourInitializeEvent struct {
	Config         VapourInitializeConfig
	VmStateBuilder common.Address
}

// RainConstructConfig is the configuration tuple of a Rain721A Construct event.
type RainConstructConfig struct {
	Name        string
	Symbol      string
	BaseURI     string
	SupplyLimit *big.Int
	Recipient   common.Address
	Owner       common.Address
}

// RainInitializeConfig is the configuration tuple of a Rain721A Initialize event.
type RainInitializeConfig struct {
	VmStateBuilder common.Address
	VmStateConfig  StateConfig
	Currency       common.Address
}

type OwnershipTransferredEvent struct {
	PreviousOwner common.Address
	NewOwner      common.Address
}

type RecipientChangedEvent struct {
	NewRecipient common.Address
}

type TransferEvent struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

type BuyEvent struct {
	Receiver common.Address
	Units    *big.Int
	Cost     *big.Int
}

type WithdrawEvent struct {
	Withdrawer      common.Address
	AmountWithdrawn *big.Int
	TotalWithdrawn  *big.Int
}

type RoleAdminChangedEvent struct {
	Role              common.Hash
	PreviousAdminRole common.Hash
	NewAdminRole      common.Hash
}

// RoleEvent is the payload of RoleGranted and RoleRevoked.
type RoleEvent struct {
	Role    common.Hash
	Account common.Address
	Sender  common.Address
}

func unpack(contractABI abi.ABI, event string, log types.Log, indexed int) ([]any, error) {
	if len(log.Topics) != indexed+1 {
		return nil, fmt.Errorf("%w: %s expects %d topics, got %d", errMalformedLog, event, indexed+1, len(log.Topics))
	}

	values, err := contractABI.Unpack(event, log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack %s: %w", errMalformedLog, event, err)
	}

	return values, nil
}

func convert[T any](value any) T {
	return *abi.ConvertType(value, new(T)).(*T)
}

func topicAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes())
}

func decodeNewChild(log types.Log) (NewChildEvent, error) {
	values, err := unpack(factoryABI, EventNewChild, log, 0)
	if err != nil {
		return NewChildEvent{}, err
	}

	return NewChildEvent{
		Sender: convert[common.Address](values[0]),
		Child:  convert[common.Address](values[1]),
	}, nil
}

func decodeVapourInitialize(log types.Log) (VapourInitializeEvent, error) {
	values, err := unpack(vapourABI, EventInitialize, log, 0)
	if err != nil {
		return VapourInitializeEvent{}, err
	}

	return VapourInitializeEvent{
		Config:         convert[VapourInitializeConfig](values[0]),
		VmStateBuilder: convert[common.Address](values[1]),
	}, nil
}

func decodeRainConstruct(log types.Log) (RainConstructConfig, error) {
	values, err := unpack(rainABI, EventConstruct, log, 0)
	if err != nil {
		return RainConstructConfig{}, err
	}

	return convert[RainConstructConfig](values[0]), nil
}

func decodeRainInitialize(log types.Log) (RainInitializeConfig, error) {
	values, err := unpack(rainABI, EventInitialize, log, 0)
	if err != nil {
		return RainInitializeConfig{}, err
	}

	return convert[RainInitializeConfig](values[0]), nil
}

func decodeOwnershipTransferred(log types.Log) (OwnershipTransferredEvent, error) {
	if _, err := unpack(collectionABI, EventOwnershipTransferred, log, 2); err != nil {
		return OwnershipTransferredEvent{}, err
	}

	return OwnershipTransferredEvent{
		PreviousOwner: topicAddress(log.Topics[1]),
		NewOwner:      topicAddress(log.Topics[2]),
	}, nil
}

func decodeRecipientChanged(log types.Log) (RecipientChangedEvent, error) {
	values, err := unpack(collectionABI, EventRecipientChanged, log, 0)
	if err != nil {
		return RecipientChangedEvent{}, err
	}

	return RecipientChangedEvent{NewRecipient: convert[common.Address](values[0])}, nil
}

func decodeTransfer(log types.Log) (TransferEvent, error) {
	if _, err := unpack(collectionABI, EventTransfer, log, 3); err != nil {
		return TransferEvent{}, err
	}

	return TransferEvent{
		From:    topicAddress(log.Topics[1]),
		To:      topicAddress(log.Topics[2]),
		TokenID: log.Topics[3].Big(),
	}, nil
}

func decodeBuy(log types.Log) (BuyEvent, error) {
	values, err := unpack(collectionABI, EventBuy, log, 0)
	if err != nil {
		return BuyEvent{}, err
	}

	return BuyEvent{
		Receiver: convert[common.Address](values[0]),
		Units:    convert[*big.Int](values[1]),
		Cost:     convert[*big.Int](values[2]),
	}, nil
}

func decodeWithdraw(log types.Log) (WithdrawEvent, error) {
	values, err := unpack(collectionABI, EventWithdraw, log, 0)
	if err != nil {
		return WithdrawEvent{}, err
	}

	return WithdrawEvent{
		Withdrawer:      convert[common.Address](values[0]),
		AmountWithdrawn: convert[*big.Int](values[1]),
		TotalWithdrawn:  convert[*big.Int](values[2]),
	}, nil
}

func decodeRoleAdminChanged(log types.Log) (RoleAdminChangedEvent, error) {
	if _, err := unpack(collectionABI, EventRoleAdminChanged, log, 3); err != nil {
		return RoleAdminChangedEvent{}, err
	}

	return RoleAdminChangedEvent{
		Role:              log.Topics[1],
		PreviousAdminRole: log.Topics[2],
		NewAdminRole:      log.Topics[3],
	}, nil
}

func decodeRoleEvent(event string, log types.Log) (RoleEvent, error) {
	if _, err := unpack(collectionABI, event, log, 3); err != nil {
		return RoleEvent{}, err
	}

	return RoleEvent{
		Role:    log.Topics[1],
		Account: topicAddress(log.Topics[2]),
		Sender:  topicAddress(log.Topics[3]),
	}, nil
}
