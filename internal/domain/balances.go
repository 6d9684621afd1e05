package domain

// Balances son los saldos on-chain de una dirección.
type Balances struct {
	Address    string
	Native     float64 // POL
	Collateral float64 // USDC.e
}

// TxReceipt es el resultado de una transferencia de colateral confirmada.
type TxReceipt struct {
	TxHash      string
	Destination string
	Amount      float64
	GasUsed     uint64
	BlockNumber uint64
	Success     bool
}
