package drop

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestDecodeVapourInitialize(t *testing.T) {
	c := newChainLogs(10)
	log := c.vapourInitialize(t, collectionC, erc20Token)

	ev, err := decodeVapourInitialize(log)
	require.NoError(t, err)

	require.Equal(t, "Rain721NFT", ev.Config.Name)
	require.Equal(t, "RAIN", ev.Config.Symbol)
	require.Equal(t, "ipfs://base", ev.Config.BaseURI)
	require.Equal(t, bob, ev.Config.Recipient)
	require.Equal(t, alice, ev.Config.Owner)
	require.Equal(t, deployer, ev.Config.Admin)
	require.Equal(t, erc20Token, ev.Config.Currency)
	require.Equal(t, builder, ev.VmStateBuilder)
	requireBig(t, 10000, ev.Config.SupplyLimit)
	requireBig(t, 1000, ev.Config.RoyaltyBPS)
	require.Equal(t, [][]byte{{0x00, 0x01, 0x00, 0x02}}, ev.Config.VmStateConfig.Sources)
	require.Len(t, ev.Config.VmStateConfig.Constants, 2)
	requireBig(t, 10000, ev.Config.VmStateConfig.Constants[0])
}

func TestDecodeIndexedEvents(t *testing.T) {
	c := newChainLogs(10)

	transfer, err := decodeTransfer(c.transfer(collectionC, alice, bob, 42))
	require.NoError(t, err)
	require.Equal(t, alice, transfer.From)
	require.Equal(t, bob, transfer.To)
	requireBig(t, 42, transfer.TokenID)

	role, err := decodeRoleEvent(EventRoleGranted,
		c.roleEvent(RoleGrantedTopic, collectionC, DelegatedMinterRole, alice, deployer))
	require.NoError(t, err)
	require.Equal(t, DelegatedMinterRole, role.Role)
	require.Equal(t, alice, role.Account)
	require.Equal(t, deployer, role.Sender)

	buy, err := decodeBuy(c.buy(t, collectionC, alice, 3, 300))
	require.NoError(t, err)
	require.Equal(t, alice, buy.Receiver)
	requireBig(t, 3, buy.Units)
	requireBig(t, 300, buy.Cost)
}

func TestDecodeMalformedLogs(t *testing.T) {
	tests := []struct {
		name   string
		decode func(log types.Log) error
		log    types.Log
	}{
		{
			name: "transfer without token id",
			decode: func(log types.Log) error {
				_, err := decodeTransfer(log)
				return err
			},
			log: types.Log{Topics: []common.Hash{TransferTopic, addressTopic(alice), addressTopic(bob)}},
		},
		{
			name: "buy with truncated data",
			decode: func(log types.Log) error {
				_, err := decodeBuy(log)
				return err
			},
			log: types.Log{Topics: []common.Hash{BuyTopic}, Data: common.LeftPadBytes(big.NewInt(1).Bytes(), 32)},
		},
		{
			name: "new child without data",
			decode: func(log types.Log) error {
				_, err := decodeNewChild(log)
				return err
			},
			log: types.Log{Topics: []common.Hash{NewChildTopic}},
		},
		{
			name: "role granted with extra topic",
			decode: func(log types.Log) error {
				_, err := decodeRoleEvent(EventRoleGranted, log)
				return err
			},
			log: types.Log{Topics: []common.Hash{
				RoleGrantedTopic, DelegatedMinterRole, addressTopic(alice), addressTopic(bob), {},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.decode(tt.log), errMalformedLog)
		})
	}
}

func TestCollectionTopics(t *testing.T) {
	vapour := collectionTopics(config.CollectionKindVapour721A)
	require.Contains(t, vapour, VapourInitializeTopic)
	require.NotContains(t, vapour, RainConstructTopic)
	require.NotContains(t, vapour, RainInitializeTopic)

	rain := collectionTopics(config.CollectionKindRain721A)
	require.Contains(t, rain, RainConstructTopic)
	require.Contains(t, rain, RainInitializeTopic)
	require.NotContains(t, rain, VapourInitializeTopic)

	for _, topics := range [][]common.Hash{vapour, rain} {
		require.Contains(t, topics, TransferTopic)
		require.Contains(t, topics, BuyTopic)
		require.Contains(t, topics, RoleGrantedTopic)
	}

	require.NotEqual(t, VapourInitializeTopic, RainInitializeTopic)
}
