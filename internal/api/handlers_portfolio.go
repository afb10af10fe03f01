package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/service"
	"github.com/lp-portfolio/internal/types"
)

// parseChains reads the comma separated chains query parameter.
// Empty means the loader's default chains.
func parseChains(r *http.Request) ([]types.ChainKey, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("chains"))
	if raw == "" {
		return nil, nil
	}
	names := strings.Split(raw, ",")
	keys, err := registry.ParseChainKeys(names)
	if err != nil {
		return nil, apperrors.NewUnsupportedChainError(raw)
	}
	return keys, nil
}

// handleGetPortfolio handles GET /api/portfolio/{address}?chains=&refresh=
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	address, err := service.ValidateAddress(mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	chains, err := parseChains(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if !refresh {
		if cached := s.loader.Cached(r.Context(), address, chains); cached != nil {
			w.Header().Set("X-Cache", "HIT")
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	result, err := s.loader.Load(r.Context(), address, chains)
	if err != nil {
		s.logger.WithField("address", address).WithError(err).Warn("Portfolio load failed")
		respondServiceError(w, err)
		return
	}

	w.Header().Set("X-Cache", "MISS")
	respondJSON(w, http.StatusOK, result)
}

// handleGetSnapshots handles GET /api/portfolio/{address}/snapshots?limit=
func (s *Server) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	snapshots, err := s.loader.Snapshots(r.Context(), address, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":   strings.ToLower(address),
		"snapshots": snapshots,
	})
}
