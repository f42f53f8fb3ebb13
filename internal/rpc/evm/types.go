package evm

type (
	Txn struct {
		Hash        string  `json:"hash"`
		From        string  `json:"from"`
		To          string  `json:"to"`
		Value       string  `json:"value"`
		Gas         string  `json:"gas"`
		GasPrice    string  `json:"gasPrice"`
		Nonce       string  `json:"nonce"`
		BlockNumber *string `json:"blockNumber"`
	}

	TxnReceipt struct {
		TransactionHash   string `json:"transactionHash"`
		BlockNumber       string `json:"blockNumber"`
		GasUsed           string `json:"gasUsed"`
		EffectiveGasPrice string `json:"effectiveGasPrice"`
		Status            string `json:"status"`
	}

	callMsg struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Value string `json:"value"`
	}
)

const (
	receiptStatusSuccess = "0x1"
	receiptStatusFailure = "0x0"
)
