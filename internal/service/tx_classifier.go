package service

import (
	"strconv"
	"strings"

	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

// ClassifyTransaction maps a transaction's 4-byte selector onto a TxType.
// The protocol is accepted so protocol specific tables can be added later;
// today every protocol shares one selector table.
func ClassifyTransaction(tx types.RawTransaction, protocol registry.ProtocolMetadata) types.TxType {
	if sig, ok := registry.LookupMethod(selector(tx)); ok {
		return sig.TxType
	}
	return types.TxUnknown
}

// selector is the lower-cased 4-byte method ID, taken from the calldata or,
// when the explorer row carries no calldata, from its methodId column
func selector(tx types.RawTransaction) string {
	if id := registry.MethodID(tx.Input); id != "" {
		return id
	}
	return registry.MethodID(tx.MethodID)
}

// DetectActions classifies the wallet's transactions that target a known
// protocol contract on the chain. Transactions to any other address are
// dropped, never reported as unknown. Calls to a protocol contract with an
// unrecognized selector are kept as TxUnknown.
func DetectActions(txs []types.RawTransaction, user string, chain registry.ChainConfig) []models.ClassifiedAction {
	user = strings.ToLower(user)

	var actions []models.ClassifiedAction
	for _, tx := range txs {
		from := strings.ToLower(tx.From)
		if user != "" && from != user {
			continue
		}

		to := strings.ToLower(tx.To)
		protocol, ok := registry.MatchContract(to, string(chain.Key))
		if !ok {
			continue
		}

		timestamp, err := strconv.ParseInt(strings.TrimSpace(tx.TimeStamp), 10, 64)
		if err != nil {
			continue
		}
		value, ok := weiToNative(tx.Value, 18)
		if !ok {
			continue
		}
		gasPrice, _ := weiToNative(tx.GasPrice, 9)
		gasUsed, _ := strconv.ParseInt(strings.TrimSpace(tx.GasUsed), 10, 64)

		actions = append(actions, models.ClassifiedAction{
			Hash:        tx.Hash,
			From:        from,
			To:          to,
			TxType:      ClassifyTransaction(tx, protocol),
			Protocol:    protocol.Name,
			ProtocolKey: protocol.Key,
			ChainName:   chain.Name,
			Timestamp:   timestamp,
			Value:       value,
			GasUsed:     gasUsed,
			GasPrice:    gasPrice,
			MethodID:    selector(tx),
		})
	}
	return actions
}
