package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ssargent/podkit/pkg/compose"
	"github.com/ssargent/podkit/pkg/inspect"
	"github.com/ssargent/podkit/pkg/logging"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/ssargent/podkit/pkg/storage"
)

// ContentTypePod is the media type of raw pod bytes.
const ContentTypePod = "application/x-pod"

// Server holds the API server state
type Server struct {
	storage PodStorage
	config  ServerConfig
	metrics *Metrics
	podOpts []pod.Option
}

// NewServer creates a new API server. The pod options describe the wire
// format used to compose and render pods.
func NewServer(storage PodStorage, config ServerConfig, metrics *Metrics, opts ...pod.Option) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	return &Server{
		storage: storage,
		config:  config,
		metrics: metrics,
		podOpts: opts,
	}
}

// handleHealth godoc
//
//	@Summary	Health check
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.storage.Stats(); err != nil {
		s.metrics.RecordHealthCheck(false)
		sendError(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handlePutPod godoc
//
//	@Summary		Store a pod
//	@Description	Raw pod bytes (application/x-pod or application/octet-stream) are
//	@Description	validated and stored as-is. YAML or JSON documents are composed first.
//	@Accept			application/x-pod,octet-stream,yaml,json
//	@Produce		json
//	@Success		201	{object}	PodInfo
//	@Success		200	{object}	PodInfo	"identical pod already stored"
//	@Failure		400	{object}	APIResponse
//	@Router			/pods [post]
//	@Security		ApiKeyAuth
func (s *Server) handlePutPod(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	data, source, ok := s.readPod(w, r)
	if !ok {
		s.metrics.RecordPodOperation("put", false, time.Since(start))
		return
	}

	id, created, err := s.storage.Put(data)
	if err != nil {
		s.metrics.RecordPodOperation("put", false, time.Since(start))
		if errors.Is(err, storage.ErrInvalidPod) {
			s.metrics.RecordRejectedPod(source)
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logging.FromContext(r.Context()).Error("failed to store pod", "error", err)
		sendError(w, fmt.Sprintf("Failed to store pod: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.RecordPodOperation("put", true, time.Since(start))
	if created {
		s.metrics.AdjustPodStats(1, int64(len(data)))
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	sendSuccessStatus(w, status, PodInfo{
		ID:      id.String(),
		Size:    len(data),
		Digest:  storage.Digest(data),
		Created: created,
	})
}

// handleValidate godoc
//
//	@Summary	Validate a pod without storing it
//	@Accept		application/x-pod,octet-stream,yaml,json
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Failure	400	{object}	APIResponse
//	@Router		/validate [post]
//	@Security	ApiKeyAuth
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	data, source, ok := s.readPod(w, r)
	if !ok {
		return
	}
	if err := pod.Validate(data, s.podOpts...); err != nil {
		s.metrics.RecordRejectedPod(source)
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sendSuccess(w, map[string]interface{}{"valid": true, "size": len(data), "digest": storage.Digest(data)})
}

// readPod reads the request body as raw pod bytes or as a document to
// compose. It writes the error response itself when it returns false.
func (s *Server) readPod(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil, "", false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return nil, "", false
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "application/json":
		var data []byte
		if mediaType == "application/json" {
			data, err = compose.ComposeJSON(body, s.podOpts...)
		} else {
			data, err = compose.ComposeAll(bytes.NewReader(body), s.podOpts...)
		}
		if err != nil {
			s.metrics.RecordRejectedPod("document")
			sendError(w, fmt.Sprintf("Invalid pod document: %v", err), http.StatusBadRequest)
			return nil, "", false
		}
		return data, "document", true
	}
	return body, "raw", true
}

// handleListPods godoc
//
//	@Summary	List stored pods
//	@Produce	json
//	@Param		limit	query		int	false	"Maximum number of pods"
//	@Success	200		{object}	map[string]interface{}
//	@Router		/pods [get]
//	@Security	ApiKeyAuth
func (s *Server) handleListPods(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	start := time.Now()
	entries, err := s.storage.List(limit)
	s.metrics.RecordPodOperation("list", err == nil, time.Since(start))
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to list pods: %v", err), http.StatusInternalServerError)
		return
	}

	pods := make([]PodInfo, 0, len(entries))
	for _, e := range entries {
		pods = append(pods, PodInfo{ID: e.ID.String(), Size: e.Size, Digest: e.Digest})
	}
	sendSuccess(w, map[string]interface{}{"pods": pods})
}

// handleGetPod godoc
//
//	@Summary		Get raw pod bytes
//	@Description	The ETag is the BLAKE3 digest of the pod; If-None-Match is honoured.
//	@Produce		application/x-pod
//	@Param			id	path	string	true	"Pod id"
//	@Success		200
//	@Success		304
//	@Failure		404	{object}	APIResponse
//	@Router			/pods/{id} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetPod(w http.ResponseWriter, r *http.Request) {
	data, ok := s.loadPod(w, r)
	if !ok {
		return
	}

	etag := strconv.Quote(storage.Digest(data))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", ContentTypePod)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("failed to write pod", "error", err)
	}
}

// handleDumpPod godoc
//
//	@Summary	Render a stored pod
//	@Produce	json,yaml,text/plain,application/cbor
//	@Param		id		path	string	true	"Pod id"
//	@Param		format	query	string	false	"json (default), yaml, text or cbor"
//	@Success	200
//	@Failure	404	{object}	APIResponse
//	@Router		/pods/{id}/dump [get]
//	@Security	ApiKeyAuth
func (s *Server) handleDumpPod(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = inspect.FormatJSON
	}
	contentType, ok := dumpContentTypes[format]
	if !ok {
		sendError(w, fmt.Sprintf("Unknown format %q", format), http.StatusBadRequest)
		return
	}

	data, ok := s.loadPod(w, r)
	if !ok {
		return
	}

	var out bytes.Buffer
	if err := inspect.Render(&out, data, format, s.podOpts...); err != nil {
		sendError(w, fmt.Sprintf("Failed to render pod: %v", err), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(out.Bytes())
}

var dumpContentTypes = map[string]string{
	inspect.FormatJSON: "application/json",
	inspect.FormatYAML: "application/yaml",
	inspect.FormatText: "text/plain; charset=utf-8",
	inspect.FormatCBOR: "application/cbor",
}

// handleDeletePod godoc
//
//	@Summary	Delete a pod
//	@Produce	json
//	@Param		id	path		string	true	"Pod id"
//	@Success	200	{object}	map[string]string
//	@Failure	404	{object}	APIResponse
//	@Router		/pods/{id} [delete]
//	@Security	ApiKeyAuth
func (s *Server) handleDeletePod(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := storage.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// the gauges move by the deleted pod's size
	data, err := s.storage.Get(id)
	if err == nil {
		err = s.storage.Delete(id)
	}
	s.metrics.RecordPodOperation("delete", err == nil, time.Since(start))
	switch {
	case errors.Is(err, storage.ErrPodNotFound):
		sendError(w, "Pod not found", http.StatusNotFound)
		return
	case err != nil:
		sendError(w, fmt.Sprintf("Failed to delete pod: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.AdjustPodStats(-1, -int64(len(data)))
	sendSuccess(w, map[string]string{"message": "Pod deleted successfully"})
}

// handleStats godoc
//
//	@Summary	Storage statistics
//	@Produce	json
//	@Success	200	{object}	StatsResponse
//	@Router		/stats [get]
//	@Security	ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.Stats()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to read stats: %v", err), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, StatsResponse{Pods: stats.Pods, Bytes: stats.Bytes})
}

// loadPod fetches the pod named by the {id} URL parameter. It writes the
// error response itself when it returns false.
func (s *Server) loadPod(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	start := time.Now()
	id, err := storage.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	data, err := s.storage.Get(id)
	s.metrics.RecordPodOperation("get", err == nil, time.Since(start))
	switch {
	case errors.Is(err, storage.ErrPodNotFound):
		sendError(w, "Pod not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		sendError(w, fmt.Sprintf("Failed to get pod: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

// refreshStats resets the storage gauges from a full scan.
func (s *Server) refreshStats(logger *slog.Logger) {
	stats, err := s.storage.Stats()
	if err != nil {
		logger.Warn("failed to refresh pod stats", "error", err)
		return
	}
	s.metrics.UpdatePodStats(stats.Pods, stats.Bytes)
}

// runMetricsUpdater sets the storage gauges at startup and then resyncs
// them every interval until done is closed. Between scans puts and deletes
// adjust them directly.
func (s *Server) runMetricsUpdater(done <-chan struct{}, interval time.Duration, logger *slog.Logger) {
	s.refreshStats(logger)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.refreshStats(logger)
		}
	}
}
