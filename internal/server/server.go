// Package server exposes the HTTP surface: the JSON API and the
// server-rendered pages, both gated by the session middleware chain.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"audiobookd/internal/ingest"
	"audiobookd/internal/ratelimit"
	"audiobookd/internal/session"
	"audiobookd/internal/util"
	"audiobookd/pkg/auth"
	"audiobookd/pkg/domain"
	"audiobookd/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Store                   store.Store
	Sessions                session.Store
	SessionTTL              time.Duration
	BooksRoot               string
	Redis                   *redis.Client
	LoginRateLimitPerMinute int
	TrustedProxies          *util.TrustedProxies
}

// Server exposes HTTP endpoints for the catalog.
type Server struct {
	store        store.Store
	sessions     session.Store
	sessionTTL   time.Duration
	chain        *session.Chain
	ingestor     *ingest.Ingestor
	booksRoot    string
	trusted      *util.TrustedProxies
	loginLimiter *ratelimit.FixedWindowLimiter
	tmpl         *template.Template
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("server: session store is required")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	var loginLimiter *ratelimit.FixedWindowLimiter
	if cfg.Redis != nil {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "audiobookd:ratelimit:login", loginLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
		loginLimiter = limiter
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{
		store:        cfg.Store,
		sessions:     cfg.Sessions,
		sessionTTL:   cfg.SessionTTL,
		chain:        session.NewChain(cfg.Sessions),
		ingestor:     ingest.New(cfg.Store, cfg.BooksRoot),
		booksRoot:    cfg.BooksRoot,
		trusted:      cfg.TrustedProxies,
		loginLimiter: loginLimiter,
		tmpl:         tmpl,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the ambient
// middleware stack.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.trusted, util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.Handle("/account", s.chain.RequireAdmin(http.HandlerFunc(s.handleAccount)))
	s.mux.HandleFunc("/account/login", s.handleLogin)
	s.mux.HandleFunc("/account/logout", s.handleLogout)

	// catalog & playback (user gate)
	s.mux.Handle("/music/listbook", s.chain.RequireUser(http.HandlerFunc(s.handleListBook)))
	s.mux.Handle("/music/getbook/", s.chain.RequireUser(http.HandlerFunc(s.handleGetBook)))
	s.mux.Handle("/music/getfile/", s.chain.RequireUser(http.HandlerFunc(s.handleGetFile)))
	s.mux.Handle("/progress/getprogress", s.chain.RequireUser(http.HandlerFunc(s.handleGetProgress)))
	s.mux.Handle("/progress/setprogress", s.chain.RequireUser(http.HandlerFunc(s.handleSetProgress)))

	// library management (admin gate)
	s.mux.Handle("/management/listfile", s.chain.RequireAdmin(http.HandlerFunc(s.handleListFile)))
	s.mux.Handle("/management/selectpath", s.chain.RequireAdmin(http.HandlerFunc(s.handleSelectPath)))

	// rendered pages (passive session)
	s.mux.Handle("/webui/login", s.chain.WithSession(http.HandlerFunc(s.handleLoginPage)))
	s.mux.HandleFunc("/webui/logout", s.handleLogoutPage)
	s.mux.Handle("/webui/index", s.chain.WithSession(http.HandlerFunc(s.handleIndexPage)))
	s.mux.Handle("/webui/books", s.chain.WithSession(http.HandlerFunc(s.handleBooksPage)))
	s.mux.Handle("/webui/static/", staticHandler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/webui/index", http.StatusFound)
}

// account handlers

type createAccountRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role_level"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListAccounts(w, r)
	case http.MethodPost:
		s.handleCreateAccount(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "role_level must be 0 or 1")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash password failed")
		return
	}
	account, err := s.store.CreateAccount(domain.Account{
		Name:     req.Username,
		Password: hash,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse keeps the numeric result codes clients already rely
// on: 0 success, 1 wrong password, 2 no such user.
type loginResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, ok, err := s.store.GetAccountByName(req.Username)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, loginResponse{Code: 2, Message: "no such user"})
		return
	}
	if !auth.CheckPassword(req.Password, account.Password) {
		writeJSON(w, http.StatusOK, loginResponse{Code: 1, Message: "wrong password"})
		return
	}
	token, err := s.sessions.Create(r.Context(), session.Identity{
		UserID:   account.ID,
		Role:     account.Role,
		Username: account.Name,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create session failed")
		return
	}
	http.SetCookie(w, session.NewCookie(token, s.sessionTTL))
	writeJSON(w, http.StatusOK, loginResponse{Code: 0, Message: "login success"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if token, ok := session.TokenFromRequest(r); ok {
		if err := s.sessions.Delete(r.Context(), token); err != nil {
			slog.Warn("delete session failed", "err", err)
		}
	}
	http.SetCookie(w, session.ClearCookie())
	writeJSON(w, http.StatusOK, loginResponse{Code: 0, Message: "logout success"})
}

// catalog handlers

func (s *Server) handleListBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	books, err := s.store.ListBooks(page, pageSize)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	total, err := s.store.CountBooks()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"books":     books,
	})
}

type bookDetail struct {
	domain.Book
	Author domain.Author `json:"author"`
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/music/getbook/"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, ok, err := s.store.GetBook(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	author, _, err := s.store.GetAuthorByID(book.AuthorID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookDetail{Book: book, Author: author})
}

// audioExtensions lists the served formats in preference order.
var audioExtensions = []string{".mp3", ".m4a"}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/music/getfile/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "expected /music/getfile/{book}/{chapter}")
		return
	}
	bookID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	chapter, err := strconv.Atoi(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chapter number")
		return
	}
	book, ok, err := s.store.GetBook(bookID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if chapter < 1 || chapter > int(book.Chapters) {
		writeError(w, http.StatusNotFound, "chapter not found")
		return
	}
	base := fmt.Sprintf("%04d", chapter)
	for _, ext := range audioExtensions {
		path := filepath.Join(s.booksRoot, filepath.FromSlash(book.FileFolder), base+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}
	}
	writeError(w, http.StatusNotFound, "audio file not found")
}

// progress handlers

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	identity, ok := session.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	bookID, err := strconv.ParseInt(r.URL.Query().Get("book_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book_id")
		return
	}
	if _, found, err := s.store.GetBook(bookID); err != nil {
		writeStoreError(w, r, err)
		return
	} else if !found {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	progress, err := s.store.GetOrCreateProgress(identity.UserID, bookID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type setProgressRequest struct {
	BookID    int64   `json:"book_id"`
	ChapterNo int32   `json:"chapter_no"`
	Progress  float64 `json:"progress"`
}

func (s *Server) handleSetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	identity, ok := session.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	var req setProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChapterNo < 0 {
		writeError(w, http.StatusBadRequest, "chapter_no must not be negative")
		return
	}
	if _, found, err := s.store.GetBook(req.BookID); err != nil {
		writeStoreError(w, r, err)
		return
	} else if !found {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	record, err := s.store.GetOrCreateProgress(identity.UserID, req.BookID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := s.store.SetProgress(identity.UserID, req.BookID, req.ChapterNo, req.Progress); err != nil {
		writeStoreError(w, r, err)
		return
	}
	record.ChapterNo = req.ChapterNo
	record.Progress = req.Progress
	writeJSON(w, http.StatusOK, record)
}

// management handlers

type fileEntry struct {
	FileType string `json:"file_type"`
	FileName string `json:"file_name"`
}

type fileListResponse struct {
	Code     int         `json:"code"`
	Msg      string      `json:"msg"`
	FileList []fileEntry `json:"file_list"`
}

func (s *Server) handleListFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	dir := r.URL.Query().Get("path")
	if dir == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, fileListResponse{
			Code:     -1,
			Msg:      fmt.Sprintf("read_dir error: %v", err),
			FileList: []fileEntry{},
		})
		return
	}
	list := make([]fileEntry, 0, len(entries))
	for _, entry := range entries {
		kind := "File"
		if entry.IsDir() {
			kind = "Dir"
		}
		list = append(list, fileEntry{FileType: kind, FileName: entry.Name()})
	}
	writeJSON(w, http.StatusOK, fileListResponse{Code: 0, Msg: "success", FileList: list})
}

type selectPathRequest struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Author string `json:"author"`
}

func (s *Server) handleSelectPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req selectPathRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" || req.Name == "" || req.Author == "" {
		writeError(w, http.StatusBadRequest, "path, name, and author are required")
		return
	}
	book, err := s.ingestor.CreateBook(req.Author, req.Name, req.Path)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "book already exists")
			return
		}
		slog.Error("ingestion failed", "book", req.Name, "err", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "success", "book": book})
}

// helpers

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	util.LoggerFromContext(r.Context()).Error("store error", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "store unavailable")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
