package models

import (
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

// ChainData is everything fetched from one chain's explorer for a wallet.
// A failed sub-fetch leaves its slice empty.
type ChainData struct {
	Chain                registry.ChainConfig     `json:"chain"`
	Transactions         []types.RawTransaction   `json:"transactions"`
	InternalTransactions []types.RawTransaction   `json:"internalTransactions"`
	TokenTransfers       []types.RawTokenTransfer `json:"tokenTransfers"`
	NFTTransfers         []types.RawTokenTransfer `json:"nftTransfers"`
	NativeBalance        string                   `json:"nativeBalance"`
}
