package server

import (
	"bytes"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"

	"audiobookd/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// staticHandler serves the embedded page assets under /webui/static/.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/webui/static/", http.FileServerFS(sub))
}

type loginPageData struct {
	LoggedIn bool
	Username string
}

type recentItem struct {
	BookID    int64
	BookName  string
	ChapterNo int32
	Progress  float64
}

type indexPageData struct {
	Username string
	Recent   []recentItem
}

type bookItem struct {
	ID       int64
	Name     string
	Author   string
	Chapters int32
}

type booksPageData struct {
	Username string
	Books    []bookItem
}

// handleLogoutPage ends the session from a plain link: the token is
// deleted, the cookie cleared, and the visitor lands on the login page.
func (s *Server) handleLogoutPage(w http.ResponseWriter, r *http.Request) {
	if token, ok := session.TokenFromRequest(r); ok {
		if err := s.sessions.Delete(r.Context(), token); err != nil {
			slog.Warn("delete session failed", "err", err)
		}
	}
	http.SetCookie(w, session.ClearCookie())
	s.renderPage(w, "login.html", loginPageData{})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := loginPageData{}
	if id, ok := session.IdentityFromContext(r.Context()); ok {
		data.LoggedIn = true
		data.Username = id.Username
	}
	s.renderPage(w, "login.html", data)
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	identity, ok := session.IdentityFromContext(r.Context())
	if !ok {
		s.renderPage(w, "login.html", loginPageData{})
		return
	}
	records, err := s.store.ListProgressByAccount(identity.UserID)
	if err != nil {
		slog.Error("list progress failed", "user", identity.Username, "err", err)
		records = nil
	}
	recent := make([]recentItem, 0, len(records))
	for _, rec := range records {
		if len(recent) == 20 {
			break
		}
		name := "unknown"
		if book, found, err := s.store.GetBook(rec.BookID); err == nil && found {
			name = book.Name
		}
		recent = append(recent, recentItem{
			BookID:    rec.BookID,
			BookName:  name,
			ChapterNo: rec.ChapterNo,
			Progress:  rec.Progress,
		})
	}
	s.renderPage(w, "index.html", indexPageData{Username: identity.Username, Recent: recent})
}

func (s *Server) handleBooksPage(w http.ResponseWriter, r *http.Request) {
	identity, ok := session.IdentityFromContext(r.Context())
	if !ok {
		s.renderPage(w, "login.html", loginPageData{})
		return
	}
	books, err := s.store.ListBooks(1, 100)
	if err != nil {
		slog.Error("list books failed", "err", err)
		books = nil
	}
	authors := map[int64]string{}
	if list, err := s.store.ListAuthors(); err == nil {
		for _, a := range list {
			authors[a.ID] = a.Name
		}
	}
	items := make([]bookItem, 0, len(books))
	for _, b := range books {
		items = append(items, bookItem{
			ID:       b.ID,
			Name:     b.Name,
			Author:   authors[b.AuthorID],
			Chapters: b.Chapters,
		})
	}
	s.renderPage(w, "books.html", booksPageData{Username: identity.Username, Books: items})
}

// renderPage executes into a buffer first so a template failure can
// still produce a clean error response instead of a half-written page.
func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("render page failed", "template", name, "err", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<!doctype html><title>Error</title><h1>something went wrong</h1>"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
