package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docintake/internal/app"
	"docintake/internal/ratelimit"
	"docintake/internal/util"
)

// TooLargeMessage is the error text of a 413 response.
const TooLargeMessage = "The uploaded file is too large. Please reduce the file size."

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	Headers                  util.AppHeaders
	MaxContentLength         int64
	RedisAddr                string
	RedisPassword            string
	UploadRateLimitPerMinute int
	TrustedProxies           []string
}

// Server exposes HTTP endpoints for document intake and diagnostics.
type Server struct {
	app              *app.App
	headers          util.AppHeaders
	mux              *http.ServeMux
	maxContentLength int64
	limiter          *ratelimit.FixedWindowLimiter
	trustedProxies   *util.TrustedProxies
}

// New constructs the server with routes configured. Rate limiting is enabled
// only when a Redis address is configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	maxContentLength := cfg.MaxContentLength
	if maxContentLength <= 0 {
		maxContentLength = 50 * 1024 * 1024
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:              cfg.App,
		headers:          cfg.Headers,
		mux:              http.NewServeMux(),
		maxContentLength: maxContentLength,
		trustedProxies:   trusted,
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		limit := cfg.UploadRateLimitPerMinute
		if limit <= 0 {
			limit = 60
		}
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "docintake:ratelimit:upload", limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init upload limiter: %w", err)
		}
		s.limiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("intake", util.WithAppHeaders(s.headers, util.WithSecurityHeaders(util.WithCORS(s.mux)))))
}

// Close releases the rate limiter connection pool.
func (s *Server) Close() error {
	return s.limiter.Close()
}

func (s *Server) routes() {
	// uploads
	s.mux.Handle("POST /uploads", s.rateLimited(s.handleUploads))
	s.mux.Handle("POST /uploads/{$}", s.rateLimited(s.handleUploads))
	s.mux.HandleFunc("GET /uploads/{id}", s.handleGetBatch)
	s.mux.Handle("POST /process", s.rateLimited(s.handleProcess))
	s.mux.Handle("POST /process/{$}", s.rateLimited(s.handleProcess))

	// catalogue
	s.mux.HandleFunc("GET /messages", s.handleMessages)

	// diagnostics
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /threads", s.handleThreads)
	s.mux.HandleFunc("GET /db-pool-info", s.handlePoolInfo)
}

func (s *Server) rateLimited(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next(w, r)
			return
		}
		key := strings.TrimSuffix(r.URL.Path, "/") + "|" + util.ClientIP(r, s.trustedProxies)
		ok, retryAfter := s.limiter.Allow(r.Context(), key)
		if ok {
			next(w, r)
			return
		}
		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds <= 0 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		util.LoggerFromContext(r.Context()).Warn("rate limited", "path", r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "too many requests")
	})
}

// parseMultipart bounds the body and parses the form. It writes the error
// response itself and reports whether the handler may continue.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if r.ContentLength > s.maxContentLength {
		s.tooLarge(w, r, nil)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxContentLength)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.tooLarge(w, r, err)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return false
	}
	return true
}

func (s *Server) tooLarge(w http.ResponseWriter, r *http.Request, err error) {
	util.LoggerFromContext(r.Context()).Error("request entity too large", "content_length", r.ContentLength, "limit", s.maxContentLength, "err", err)
	writeError(w, http.StatusRequestEntityTooLarge, TooLargeMessage)
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := app.UploadRequest{
		BatchName: strings.TrimSpace(r.FormValue("batchName")),
		CreatedBy: strings.TrimSpace(r.FormValue("createdBy")),
		Passwords: r.MultipartForm.Value["passwords"],
	}
	if raw := strings.TrimSpace(r.FormValue("items")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Items); err != nil {
			writeError(w, http.StatusBadRequest, "invalid items")
			return
		}
	}
	headers := r.MultipartForm.File["documents"]
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		files = append(files, f)
		req.Files = append(req.Files, app.UploadFile{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	receipt, err := s.app.SaveUploads(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNoDocuments),
			errors.Is(err, app.ErrPasswordsRequired),
			errors.Is(err, app.ErrUnsupportedFileType),
			errors.Is(err, app.ErrItemsMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			util.LoggerFromContext(r.Context()).Error("save uploads failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	view, err := s.app.GetBatch(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, app.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "document is required (field: document)")
		return
	}
	defer file.Close()
	res, err := s.app.ProcessDocument(r.Context(), header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnsupportedFileType), errors.Is(err, app.ErrDocumentRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			util.LoggerFromContext(r.Context()).Error("process document failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.app.ListMessages(r.URL.Query().Get("language"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": msgs,
		"count": len(msgs),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, s.app.Health())
}

func (s *Server) handleThreads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, s.app.Threads())
}

func (s *Server) handlePoolInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.app.PoolInfo()
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("pool info failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return "UPLOAD_TOO_LARGE"
	case status == http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	case message == "invalid form data":
		return "UPLOAD_INVALID_FORM"
	case message == "invalid items", strings.Contains(message, "items count"):
		return "UPLOAD_INVALID_ITEMS"
	case strings.Contains(message, "unsupported file type"):
		return "UPLOAD_UNSUPPORTED_FILE_TYPE"
	case strings.Contains(message, "document"):
		return "UPLOAD_DOCUMENT_REQUIRED"
	case message == "passwords required":
		return "UPLOAD_PASSWORDS_REQUIRED"
	case message == "batch not found":
		return "UPLOAD_BATCH_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "UPLOAD_INVALID_REQUEST"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		return "SYSTEM_INTERNAL_ERROR"
	}
}
