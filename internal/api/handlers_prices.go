package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// handleGetPrices handles GET /api/prices?symbols=ETH,USDC
func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("symbols"))
	if raw == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "symbols query parameter is required", nil)
		return
	}

	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"prices": s.prices.GetPrices(r.Context(), symbols),
	})
}

// handleGetCustomPrices handles GET /api/prices/custom
func (s *Server) handleGetCustomPrices(w http.ResponseWriter, r *http.Request) {
	custom, err := s.prices.CustomPrices(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"custom": custom,
	})
}

// handleSetCustomPrice handles PUT /api/prices/{symbol} with {"price": n}
func (s *Server) handleSetCustomPrice(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var req struct {
		Price *float64 `json:"price"`
	}
	if err := parseJSONBody(r, &req); err != nil || req.Price == nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := s.prices.SetCustomPrice(r.Context(), symbol, *req.Price); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": strings.ToUpper(strings.TrimSpace(symbol)),
		"price":  *req.Price,
	})
}

// handleRemoveCustomPrice handles DELETE /api/prices/{symbol}
func (s *Server) handleRemoveCustomPrice(w http.ResponseWriter, r *http.Request) {
	if err := s.prices.RemoveCustomPrice(r.Context(), mux.Vars(r)["symbol"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetPriceCache handles GET /api/prices/cache
func (s *Server) handleGetPriceCache(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.prices.CacheStats(r.Context()))
}

// handleClearPriceCache handles DELETE /api/prices/cache
func (s *Server) handleClearPriceCache(w http.ResponseWriter, r *http.Request) {
	s.prices.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}
