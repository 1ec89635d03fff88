package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/prodsearch/internal/collection"
	"github.com/hyperjump/prodsearch/internal/models"
	"github.com/hyperjump/prodsearch/internal/search"
	"github.com/hyperjump/prodsearch/internal/storage"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("query", query.Query),
		zap.Int("top_k", query.TopK))
	response, err := s.engine.Query(r.Context(), &query)
	if err != nil {
		status := searchStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("search failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		}
		s.respondError(w, r, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// searchStatus maps engine errors to HTTP status codes.
func searchStatus(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, search.ErrInvalidTopK),
		errors.Is(err, search.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, search.ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.engine.Products(r.Context())
	if err != nil {
		s.respondError(w, r, searchStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    len(products),
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := s.engine.Product(r.Context(), id)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			s.respondError(w, r, http.StatusNotFound, "product not found")
			return
		}
		s.respondError(w, r, searchStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	resp := map[string]interface{}{
		"engine": stats,
	}

	configInfo := map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"index_type":           s.config.Index.Type,
		"default_top_k":        s.config.Search.DefaultTopK,
		"default_threshold":    s.config.SearchThreshold(),
		"database_path":        s.config.Storage.CollectionPath(),
	}
	if diskBytes, err := storage.CollectionDiskUsage(s.config.Storage.CollectionPath()); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	} else {
		s.logger.Debug("status: disk usage unavailable", zap.Error(err))
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message, RequestID: RequestIDFrom(r.Context())})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
