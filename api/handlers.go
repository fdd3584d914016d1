package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dshills/smolvec/core"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// defaultK is used when a query omits k
const defaultK = 10

// HealthResponse reports server health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// AddVectorRequest is the body of POST /vectors and PUT /vectors/{id}.
// ID may be omitted on POST, in which case one is generated.
type AddVectorRequest struct {
	ID       string          `json:"id,omitempty"`
	Vector   []float32       `json:"vector"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// BatchAddRequest is the body of POST /vectors/batch
type BatchAddRequest struct {
	Vectors []AddVectorRequest `json:"vectors"`
}

// BatchAddResponse lists the ids written by a batch add
type BatchAddResponse struct {
	Added int      `json:"added"`
	IDs   []string `json:"ids"`
}

// VectorResponse is a stored record
type VectorResponse struct {
	ID       string          `json:"id"`
	Vector   []float32       `json:"vector"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Vector []float32 `json:"vector"`
	K      *int      `json:"k,omitempty"`
}

// QueryResponse holds results ordered by descending score
type QueryResponse struct {
	Results []core.QueryResult `json:"results"`
}

// StatsResponse reports store statistics
type StatsResponse struct {
	Count int `json:"count"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
	}
	s.respondWithJSON(w, http.StatusOK, response)
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func validateVector(req *AddVectorRequest) error {
	if len(req.Vector) == 0 {
		return fmt.Errorf("vector for %q must not be empty", req.ID)
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return fmt.Errorf("metadata for %q is not valid JSON", req.ID)
	}
	return nil
}

// handleAddVector stores a vector, generating an id when none is given
func (s *Server) handleAddVector(w http.ResponseWriter, r *http.Request) {
	var req AddVectorRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := validateVector(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.Add(r.Context(), req.ID, req.Vector, req.Metadata); err != nil {
		s.respondWithStoreError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, VectorResponse(req))
}

// handlePutVector stores a vector under the id in the path, replacing any existing record
func (s *Server) handlePutVector(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req AddVectorRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID != "" && req.ID != id {
		s.respondWithError(w, http.StatusBadRequest, "id in body does not match path")
		return
	}
	req.ID = id
	if err := validateVector(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.Add(r.Context(), req.ID, req.Vector, req.Metadata); err != nil {
		s.respondWithStoreError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, VectorResponse(req))
}

// handleAddVectorsBatch stores several vectors at once
func (s *Server) handleAddVectorsBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchAddRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Vectors) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "vectors must not be empty")
		return
	}

	records := make([]core.VectorRecord, len(req.Vectors))
	ids := make([]string, len(req.Vectors))
	for i := range req.Vectors {
		v := &req.Vectors[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		if err := validateVector(v); err != nil {
			s.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		records[i] = core.VectorRecord{ID: v.ID, Vector: v.Vector, Metadata: v.Metadata}
		ids[i] = v.ID
	}

	if err := s.store.AddBatch(r.Context(), records); err != nil {
		s.respondWithStoreError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, BatchAddResponse{Added: len(ids), IDs: ids})
}

// handleGetVector returns a stored vector
func (s *Server) handleGetVector(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithStoreError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, VectorResponse(rec))
}

// handleDeleteVector removes a vector; unknown ids succeed
func (s *Server) handleDeleteVector(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondWithStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleQuery returns the k most similar vectors
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Vector) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "query vector must not be empty")
		return
	}

	k := defaultK
	if req.K != nil {
		k = *req.K
	}
	if k < 0 {
		s.respondWithError(w, http.StatusBadRequest, "k must not be negative")
		return
	}
	if s.config.MaxK > 0 && k > s.config.MaxK {
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("k must not exceed %d", s.config.MaxK))
		return
	}

	results, err := s.store.Query(r.Context(), req.Vector, k)
	if err != nil {
		s.respondWithStoreError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, QueryResponse{Results: results})
}

// handleStats returns store statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.respondWithStoreError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, StatsResponse{Count: count})
}
