package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/internal/semantic"
	"github.com/hyperjump/manabi/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.searchSvc.Search(r.Context(), &query)
	if err != nil {
		if query.Query == "" {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest request", zap.String("title", input.Title), zap.String("source_type", input.SourceType))
	result, err := s.ingestor.Ingest(r.Context(), &input)
	if err != nil {
		if errors.Is(err, semantic.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, "document text has no indexable content")
			return
		}
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	s.respondJSON(w, status, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("get document failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	s.logger.Debug("delete document request", zap.Int64("id", id))
	removed, err := s.ingestor.Delete(r.Context(), id)
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "removed": removed})
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	clusters := s.engine.ListClusters()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"clusters": clusters, "total": len(clusters)})
}

func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}
	c, ok := s.engine.GetCluster(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "cluster not found")
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	clusterCount, err := s.storage.CountClusters(ctx)
	if err != nil {
		s.logger.Error("status: count clusters failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":      docCount,
		"clusters":       clusterCount,
		"indexed":        s.engine.DocumentCount(),
		"memory_cluster": s.engine.ClusterCount(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
