// Package server exposes the labelling engine over HTTP: a guidelines page
// for annotators and the JSON API the annotation frontend talks to.
package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/quotelab/quotelab/internal/annotate"
	"github.com/quotelab/quotelab/internal/database"
	"github.com/quotelab/quotelab/internal/submit"
	"github.com/quotelab/quotelab/internal/task"
)

//go:embed guidelines.md
var guidelinesMD []byte

const sessionCookie = "session_id"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>quotelab</title>
</head>
<body>
{{.Content}}
</body>
</html>`))

// Server is the HTTP server of the labelling engine.
type Server struct {
	db       *database.DB
	svc      *annotate.Service
	adminKey string
	mux      *http.ServeMux

	guidelines template.HTML

	mu     sync.Mutex
	admins map[string]bool
}

// New creates a Server. An empty adminKey disables admin promotion.
func New(db *database.DB, svc *annotate.Service, adminKey string) (*Server, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert(guidelinesMD, &buf); err != nil {
		return nil, fmt.Errorf("rendering guidelines: %w", err)
	}

	s := &Server{
		db:         db,
		svc:        svc,
		adminKey:   adminKey,
		mux:        http.NewServeMux(),
		guidelines: template.HTML(buf.String()), //nolint: gosec
		admins:     make(map[string]bool),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleGuidelines)
	s.mux.HandleFunc("/api/loadContent", s.handleLoadContent)
	s.mux.HandleFunc("/api/loadAbove", s.handleLoadAbove)
	s.mux.HandleFunc("/api/loadBelow", s.handleLoadBelow)
	s.mux.HandleFunc("/api/submitTags", s.handleSubmitTags)
	s.mux.HandleFunc("/api/counts", s.handleCounts)
	s.mux.HandleFunc("/api/adminTagger", s.handleAdminTagger)
}

func (s *Server) handleGuidelines(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, map[string]any{"Content": s.guidelines}); err != nil {
		log.Printf("Error rendering guidelines: %v", err)
	}
}

// taskResponse is the JSON shape the frontend expects for a task. An empty
// pool is signaled with article_id -1 and task "none".
type taskResponse struct {
	ArticleID   int64    `json:"article_id"`
	SentenceIDs []int    `json:"sentence_id"`
	Data        []string `json:"data"`
	Task        string   `json:"task"`
}

func (s *Server) handleLoadContent(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	t, err := s.svc.RequestTask(session, s.isAdmin(session))
	if err != nil {
		log.Printf("Error loading task: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if t == nil {
		writeJSON(w, taskResponse{ArticleID: -1, SentenceIDs: []int{}, Data: []string{}, Task: task.KindNone})
		return
	}
	writeJSON(w, taskResponse{
		ArticleID:   t.ArticleID,
		SentenceIDs: t.SentenceIDs,
		Data:        t.Tokens,
		Task:        t.Kind,
	})
}

// contextResponse is a window of surrounding text. An empty window carries
// first/last sentence -1.
type contextResponse struct {
	Data          []string `json:"data"`
	FirstSentence int      `json:"first_sentence"`
	LastSentence  int      `json:"last_sentence"`
}

func (s *Server) handleLoadAbove(w http.ResponseWriter, r *http.Request) {
	s.handleContext(w, r, "first_sentence", task.Above)
}

func (s *Server) handleLoadBelow(w http.ResponseWriter, r *http.Request) {
	s.handleContext(w, r, "last_sentence", task.Below)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request, param string,
	window func(*database.Article, int) task.Context) {

	articleID, err := strconv.ParseInt(r.URL.Query().Get("article_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid article_id", http.StatusBadRequest)
		return
	}
	sentence, err := strconv.Atoi(r.URL.Query().Get(param))
	if err != nil {
		http.Error(w, "invalid "+param, http.StatusBadRequest)
		return
	}

	a, err := s.db.GetArticleByID(articleID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if a == nil {
		http.Error(w, "article not found", http.StatusNotFound)
		return
	}

	ctx := window(a, sentence)
	tokens := ctx.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	writeJSON(w, contextResponse{
		Data:          tokens,
		FirstSentence: ctx.FirstSentence,
		LastSentence:  ctx.LastSentence,
	})
}

// submitRequest is one annotator answer. Empty tags mark a skip.
type submitRequest struct {
	ArticleID     int64 `json:"article_id"`
	SentenceIDs   []int `json:"sentence_id"`
	FirstSentence int   `json:"first_sentence"`
	LastSentence  int   `json:"last_sentence"`
	Tags          []int `json:"tags"`
	Authors       []int `json:"authors"`
}

func (s *Server) handleSubmitTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session := s.session(w, r)
	sub := annotate.Submission{
		ArticleID:     req.ArticleID,
		SessionID:     session,
		TaskIndices:   req.SentenceIDs,
		FirstSentence: req.FirstSentence,
		LastSentence:  req.LastSentence,
		Tags:          req.Tags,
		Authors:       req.Authors,
		Skip:          len(req.Tags) == 0,
		Admin:         s.isAdmin(session),
	}

	switch err := s.svc.Submit(sub); {
	case err == nil:
		writeJSON(w, map[string]any{"success": true})
	case errors.Is(err, annotate.ErrNotFound):
		writeJSONStatus(w, http.StatusNotFound, map[string]any{"success": false, "reason": "article not found"})
	case errors.Is(err, submit.ErrWindow),
		errors.Is(err, submit.ErrTags),
		errors.Is(err, submit.ErrLength),
		errors.Is(err, submit.ErrAuthor):
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"success": false, "reason": err.Error()})
	default:
		log.Printf("Error processing submission: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{
		"total_articles":         stats.TotalArticles,
		"fully_labeled_articles": stats.FullyLabeledArticles,
		"total_labels":           stats.TotalLabels,
		"skipped_labels":         stats.SkippedLabels,
		"sessions":               stats.Sessions,
	})
}

// handleAdminTagger promotes the requesting session to admin when the key
// matches. Admin sessions see admin-only articles and their answers settle
// sentences immediately.
func (s *Server) handleAdminTagger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.adminKey == "" || r.URL.Query().Get("key") != s.adminKey {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	session := s.session(w, r)
	s.mu.Lock()
	s.admins[session] = true
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true})
}

// session returns the request's session ID, minting a cookie when missing.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
	return id
}

func (s *Server) isAdmin(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[session]
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, svc *annotate.Service, adminKey string, port int) error {
	srv, err := New(db, svc, adminKey)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
