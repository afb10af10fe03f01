package api

import (
	"net/http"

	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/registry"
)

// handleGetChains handles GET /api/chains - supported networks
func (s *Server) handleGetChains(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chains": registry.Chains(),
	})
}

// handleGetProtocols handles GET /api/protocols?chain= - known DEX protocols
func (s *Server) handleGetProtocols(w http.ResponseWriter, r *http.Request) {
	chain := r.URL.Query().Get("chain")
	if chain == "" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"protocols": registry.Protocols(),
		})
		return
	}

	if _, err := registry.ParseChainKeys([]string{chain}); err != nil {
		respondServiceError(w, apperrors.NewUnsupportedChainError(chain))
		return
	}

	protocols := registry.ProtocolsByChain(chain)
	if protocols == nil {
		protocols = []registry.ProtocolMetadata{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chain":     chain,
		"protocols": protocols,
	})
}
