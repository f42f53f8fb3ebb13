package enum

// Chain identifies one of the supported networks.
type Chain string

// ChainType groups chains that share an RPC protocol and address format.
type ChainType string

type TxStatus string
type TxKind string
type KVStoreType string

const (
	ChainEthereum  Chain = "ethereum"
	ChainPolygon   Chain = "polygon"
	ChainBSC       Chain = "bsc"
	ChainAvalanche Chain = "avalanche"
	ChainBase      Chain = "base"
	ChainSolana    Chain = "solana"
)

const (
	ChainTypeEVM    ChainType = "evm"
	ChainTypeSolana ChainType = "solana"
)

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusCancelled TxStatus = "cancelled"
)

const (
	TxKindSend         TxKind = "send"
	TxKindReceive      TxKind = "receive"
	TxKindSwap         TxKind = "swap"
	TxKindBridge       TxKind = "bridge"
	TxKindRewardCredit TxKind = "reward_credit"
)

const (
	KVStoreTypeBadger KVStoreType = "badger"
	KVStoreTypeConsul KVStoreType = "consul"
	KVStoreTypeRedis  KVStoreType = "redis"
)

// SupportedChains lists every chain the registry ships descriptors for.
var SupportedChains = []Chain{
	ChainEthereum,
	ChainPolygon,
	ChainBSC,
	ChainAvalanche,
	ChainBase,
	ChainSolana,
}

func (s TxStatus) IsTerminal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed || s == TxStatusCancelled
}
