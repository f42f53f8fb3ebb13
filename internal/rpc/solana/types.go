package solana

type commitmentConfig struct {
	Commitment string `json:"commitment,omitempty"`
}

type sendConfig struct {
	Encoding            string `json:"encoding"`
	PreflightCommitment string `json:"preflightCommitment,omitempty"`
}

type statusConfig struct {
	SearchTransactionHistory bool `json:"searchTransactionHistory"`
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type GetBalanceResult struct {
	Context rpcContext `json:"context"`
	Value   uint64     `json:"value"`
}

type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type GetLatestBlockhashResult struct {
	Context rpcContext      `json:"context"`
	Value   LatestBlockhash `json:"value"`
}

type GetFeeForMessageResult struct {
	Context rpcContext `json:"context"`
	Value   *uint64    `json:"value"`
}

type SignatureStatus struct {
	Slot               uint64  `json:"slot"`
	Confirmations      *uint64 `json:"confirmations"`
	Err                any     `json:"err"`
	ConfirmationStatus string  `json:"confirmationStatus"`
}

type GetSignatureStatusesResult struct {
	Context rpcContext         `json:"context"`
	Value   []*SignatureStatus `json:"value"`
}

const (
	commitmentProcessed = "processed"
	commitmentConfirmed = "confirmed"
	commitmentFinalized = "finalized"
)
