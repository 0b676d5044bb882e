package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/search"
	"github.com/kestrelai/memoria/vectorstore"
)

const (
	uploadTimeout = 60 * time.Second
	queryTimeout  = 30 * time.Second
)

// handleUpload implements spec.md §6 "POST /upload": multipart form with
// fields index, documentId?, tags[], steps[]? plus one or more file
// parts. Returns 202 {documentId, index, message} once ImportDocument
// returns: with the in-process runner that is after every step has run,
// so the response waits for the pipeline to finish; with the queue-backed
// runner it is after the first step has been enqueued.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	index := r.FormValue("index")
	if index == "" {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}
	documentID := r.FormValue("documentId")

	tags, err := parseTags(r.MultipartForm.Value["tags"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	steps := r.MultipartForm.Value["steps"]

	var files []orchestrator.UploadFile
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "open uploaded file: "+err.Error())
				return
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, "read uploaded file: "+err.Error())
				return
			}
			files = append(files, orchestrator.UploadFile{Name: fh.Filename, Content: content})
		}
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	ctx, cancel := ctxWithTimeout(r, uploadTimeout)
	defer cancel()

	p, err := s.core.Orchestrator.ImportDocument(ctx, index, orchestrator.UploadRequest{
		DocumentID: documentID,
		Tags:       tags,
		Steps:      nonEmptyOrNil(steps),
		Files:      files,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"documentId": p.DocumentID,
		"index":      p.Index,
		"message":    "upload accepted, processing started",
	})
}

// handleUploadStatus implements spec.md §6 "GET /upload-status": returns
// DataPipelineStatus, 404 if missing/empty.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	index := r.URL.Query().Get("index")
	documentID := r.URL.Query().Get("documentId")
	if index == "" || documentID == "" {
		writeError(w, http.StatusBadRequest, "index and documentId are required")
		return
	}

	ctx, cancel := ctxWithTimeout(r, queryTimeout)
	defer cancel()

	p, err := s.core.Orchestrator.ReadPipelineStatus(ctx, index, documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "no pipeline status for this document")
		return
	}
	writeJSON(w, http.StatusOK, p.ToStatus())
}

// handleListIndexes implements spec.md §6 "GET /indexes".
func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctxWithTimeout(r, queryTimeout)
	defer cancel()

	indexes, err := s.core.Search.ListIndexes(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]search.IndexDetails{"indexes": indexes})
}

// handleDeleteIndex implements spec.md §6 "DELETE /indexes?index=": async
// index deletion, 202.
func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	index := r.URL.Query().Get("index")
	if index == "" {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}
	ctx, cancel := ctxWithTimeout(r, queryTimeout)
	defer cancel()

	if _, err := s.core.Orchestrator.StartIndexDeletion(ctx, index); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "index deletion started"})
}

// handleDeleteDocument implements spec.md §6 "DELETE /documents?index=&
// documentId=": async document deletion, 202.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	index := r.URL.Query().Get("index")
	documentID := r.URL.Query().Get("documentId")
	if index == "" || documentID == "" {
		writeError(w, http.StatusBadRequest, "index and documentId are required")
		return
	}
	ctx, cancel := ctxWithTimeout(r, queryTimeout)
	defer cancel()

	if _, err := s.core.Orchestrator.StartDocumentDeletion(ctx, index, documentID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "document deletion started"})
}

// askRequest is the body of POST /ask (spec.md §6).
type askRequest struct {
	Question     string              `json:"question"`
	Index        string              `json:"index"`
	Filters      []map[string]string `json:"filters,omitempty"`
	MinRelevance float64             `json:"minRelevance,omitempty"`
}

// handleAsk implements spec.md §6 "POST /ask". Per §7, a "no data"
// condition is returned as 200 with noResult=true rather than a 4xx/5xx.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Index == "" || req.Question == "" {
		writeError(w, http.StatusBadRequest, "index and question are required")
		return
	}

	ctx, cancel := ctxWithTimeout(r, queryTimeout)
	defer cancel()

	answer, err := s.core.Search.Ask(ctx, req.Index, req.Question, search.AskOptions{
		Filters:      toFilters(req.Filters),
		MinRelevance: req.MinRelevance,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// searchRequest is the body of POST /search (spec.md §6).
type searchRequest struct {
	Query        string              `json:"query"`
	Index        string              `json:"index"`
	Filters      []map[string]string `json:"filters,omitempty"`
	MinRelevance float64             `json:"minRelevance,omitempty"`
	Limit        int                 `json:"limit,omitempty"`
}

// handleSearch implements spec.md §6 "POST /search".
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Index == "" {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}

	ctx, cancel := ctxWithTimeout(r, queryTimeout)
	defer cancel()

	result, err := s.core.Search.Search(ctx, req.Index, req.Query, search.AskOptions{
		Filters:         toFilters(req.Filters),
		MinRelevance:    req.MinRelevance,
		MaxMatchesCount: req.Limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func toFilters(raw []map[string]string) []vectorstore.Filter {
	if len(raw) == 0 {
		return nil
	}
	out := make([]vectorstore.Filter, len(raw))
	for i, f := range raw {
		out[i] = vectorstore.Filter(f)
	}
	return out
}

func nonEmptyOrNil(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// parseTags decodes "key:value" form values into pipeline.Tags, rejecting
// the reserved double-underscore namespace (spec.md §6: "Callers may not
// set these").
func parseTags(raw []string) (pipeline.Tags, error) {
	tags := make(pipeline.Tags)
	for _, kv := range raw {
		key, value, ok := cutOnce(kv, ':')
		if !ok {
			continue
		}
		tags[key] = append(tags[key], value)
	}
	return pipeline.NormalizeTags(tags)
}

func cutOnce(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
