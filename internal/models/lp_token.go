package models

import "github.com/lp-portfolio/internal/types"

// LPToken is an ERC20 the wallet has touched that looks like a pool share
type LPToken struct {
	ContractAddress string       `json:"contractAddress"` // lowercase
	Symbol          string       `json:"symbol"`
	Name            string       `json:"name"`
	Decimals        int          `json:"decimals"`
	Balance         float64      `json:"balance"`
	Transfers       []LPTransfer `json:"transfers"`
}

// LPTransfer is one movement of an LP token relative to the wallet.
// Value is signed: positive when received, negative when sent, zero for self transfers.
type LPTransfer struct {
	Hash      string                  `json:"hash"`
	From      string                  `json:"from"`
	To        string                  `json:"to"`
	Timestamp int64                   `json:"timestamp"`
	Direction types.TransferDirection `json:"direction"`
	Value     float64                 `json:"value"`
}

// ClassifiedAction is a transaction sent to a known DEX contract
type ClassifiedAction struct {
	Hash        string       `json:"hash"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	TxType      types.TxType `json:"type"`
	Protocol    string       `json:"protocol"`
	ProtocolKey string       `json:"protocolKey"`
	ChainName   string       `json:"chain"`
	Timestamp   int64        `json:"timestamp"`
	Value       float64      `json:"value"`    // native units
	GasUsed     int64        `json:"gasUsed"`
	GasPrice    float64      `json:"gasPrice"` // gwei
	MethodID    string       `json:"methodId"`
}
