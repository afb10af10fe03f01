// Package session follows a connected wallet and keeps its portfolio
// current. Wallet callbacks arrive as messages that a single goroutine
// reduces into State.
package session

import (
	"strings"

	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/models"
)

// Message is a wallet event or an internal notification handled by the reducer
type Message interface {
	isMessage()
}

// Connected is sent when a wallet connects
type Connected struct {
	Address string
	ChainID string
}

// AccountChanged is sent when the wallet switches account.
// An empty address means the wallet was locked.
type AccountChanged struct {
	Address string
}

// ChainChanged is sent when the wallet switches network
type ChainChanged struct {
	ChainID string
}

// Disconnected is sent when the wallet disconnects
type Disconnected struct{}

// Refresh asks for a reload of the connected wallet
type Refresh struct{}

type loadFinished struct {
	gen    uint64
	result *models.PortfolioResult
	err    error
}

func (Connected) isMessage()      {}
func (AccountChanged) isMessage() {}
func (ChainChanged) isMessage()   {}
func (Disconnected) isMessage()   {}
func (Refresh) isMessage()        {}
func (loadFinished) isMessage()   {}

// Event types accepted by ParseEvent
const (
	EventConnected      = "connected"
	EventAccountChanged = "accountChanged"
	EventChainChanged   = "chainChanged"
	EventDisconnected   = "disconnected"
	EventRefresh        = "refresh"
)

// Event is the JSON form of a wallet event
type Event struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	ChainID string `json:"chainId,omitempty"`
}

// ParseEvent converts an Event into a Message
func ParseEvent(e Event) (Message, error) {
	switch strings.TrimSpace(e.Type) {
	case EventConnected:
		if e.Address == "" {
			return nil, apperrors.NewInvalidInputError("address", "required for connected events")
		}
		return Connected{Address: e.Address, ChainID: e.ChainID}, nil
	case EventAccountChanged:
		return AccountChanged{Address: e.Address}, nil
	case EventChainChanged:
		if e.ChainID == "" {
			return nil, apperrors.NewInvalidInputError("chainId", "required for chainChanged events")
		}
		return ChainChanged{ChainID: e.ChainID}, nil
	case EventDisconnected:
		return Disconnected{}, nil
	case EventRefresh:
		return Refresh{}, nil
	default:
		return nil, apperrors.NewInvalidEventError(e.Type)
	}
}
