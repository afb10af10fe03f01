// Package types provides common type definitions for the LP portfolio tracker.
package types

// ChainKey identifies a supported blockchain network
type ChainKey string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainKey = "ethereum"
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainKey = "polygon"
	// ChainBase represents the Base network
	ChainBase ChainKey = "base"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainKey = "arbitrum"
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainKey = "optimism"
	// ChainBSC represents the BNB Chain (BSC)
	ChainBSC ChainKey = "bsc"
)

// TxType is the semantic action a classified transaction performs
type TxType string

const (
	// TxAddLiquidity deposits tokens into a pool
	TxAddLiquidity TxType = "add_liquidity"
	// TxRemoveLiquidity withdraws tokens from a pool
	TxRemoveLiquidity TxType = "remove_liquidity"
	// TxCollectFees claims accrued fees (Uniswap V3 style)
	TxCollectFees TxType = "collect_fees"
	// TxSwap is a router swap
	TxSwap TxType = "swap"
	// TxTransfer is a plain transfer
	TxTransfer TxType = "transfer"
	// TxUnknown is a call to a known protocol contract with an unrecognized selector
	TxUnknown TxType = "unknown"
)

// PositionStatus represents the lifecycle state of an LP position
type PositionStatus string

const (
	// StatusActive means the position holds a balance and was never partially withdrawn
	StatusActive PositionStatus = "active"
	// StatusClosed means the LP balance is effectively zero
	StatusClosed PositionStatus = "closed"
	// StatusPartial means liquidity was removed but a balance remains
	StatusPartial PositionStatus = "partial"
)

// AttributionConfidence describes how a position's transactions were attributed
type AttributionConfidence string

const (
	// AttributionNone means no transaction fell inside the correlation window
	AttributionNone AttributionConfidence = "none"
	// AttributionUnique means every attributed transaction matched only this position
	AttributionUnique AttributionConfidence = "unique"
	// AttributionShared means at least one attributed transaction also matched another position
	AttributionShared AttributionConfidence = "shared"
)

// TransferDirection is the direction of a token transfer relative to the user
type TransferDirection string

const (
	// DirectionReceive means the user is the recipient
	DirectionReceive TransferDirection = "receive"
	// DirectionSend means the user is the sender
	DirectionSend TransferDirection = "send"
	// DirectionSelf means the user is both sender and recipient
	DirectionSelf TransferDirection = "self"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// RawTransaction is a normal or internal transaction as returned by an
// Etherscan-compatible explorer. Numeric fields stay string encoded.
type RawTransaction struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Gas             string `json:"gas"`
	GasPrice        string `json:"gasPrice"`
	GasUsed         string `json:"gasUsed"`
	IsError         string `json:"isError"`
	Input           string `json:"input"`
	MethodID        string `json:"methodId,omitempty"`
	FunctionName    string `json:"functionName,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty"`
}

// RawTokenTransfer is an ERC20 (or ERC721) transfer as returned by an explorer
type RawTokenTransfer struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	Value           string `json:"value"`
	TokenID         string `json:"tokenID,omitempty"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
}

// RawLog is an event log entry from the explorer logs module
type RawLog struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TimeStamp       string   `json:"timeStamp"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
}
