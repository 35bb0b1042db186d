package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bsthun/gut"

	"github.com/lexcodex/godiagram/editor"
	"github.com/lexcodex/godiagram/filter"
	"github.com/lexcodex/godiagram/persistence"
	"github.com/lexcodex/godiagram/session"
	"github.com/lexcodex/godiagram/structure"
)

// APIServer exposes the editor over HTTP for inspection and scripted edits
// without a terminal.
type APIServer struct {
	Editor  *editor.Editor
	Journal persistence.Journal
	Session string
	Logger  *log.Logger
}

// EditResponse describes the outcome of an edit request.
type EditResponse struct {
	OK     bool           `json:"ok"`
	Error  string         `json:"error,omitempty"`
	Notice *editor.Notice `json:"notice,omitempty"`
}

// StatusResponse summarises the editor state.
type StatusResponse struct {
	State         string            `json:"state"`
	Packages      int               `json:"packages"`
	Files         int               `json:"files"`
	Structs       int               `json:"structs"`
	Edges         int               `json:"edges"`
	DrawnEdges    int               `json:"drawnEdges"`
	Transitioning bool              `json:"transitioning"`
	Query         string            `json:"query,omitempty"`
	Selection     editor.Selection  `json:"selection"`
	Pending       []PendingResponse `json:"pending"`
	Notices       []editor.Notice   `json:"notices"`
}

// PendingResponse describes a live edit that has not been committed.
type PendingResponse struct {
	Leaf     string `json:"leaf"`
	Original string `json:"original"`
	Live     string `json:"live"`
}

// Match is one highlighted entity.
type Match struct {
	Kind  string            `json:"kind"`
	Ref   structure.NodeRef `json:"ref"`
	Index *int              `json:"index,omitempty"`
	Text  string            `json:"text"`
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := s.newHTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	if s.Logger != nil {
		s.Logger.Printf("API listening on %s", addr)
	}
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler returns the API routes.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/model", s.handleModel)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/highlights", s.handleHighlights)
	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/api/journal", s.handleJournal)
	return mux
}

func (s *APIServer) newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
}

func (s *APIServer) handleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Editor.Model())
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	proj := s.Editor.Projection()
	packages, files, structs, edges := proj.Model.Counts()
	resp := StatusResponse{
		State:         proj.State.String(),
		Packages:      packages,
		Files:         files,
		Structs:       structs,
		Edges:         edges,
		DrawnEdges:    len(proj.Edges),
		Transitioning: proj.Transitioning,
		Query:         proj.Query,
		Selection:     proj.Selection,
		Pending:       make([]PendingResponse, 0, len(proj.Pending)),
		Notices:       proj.Notices,
	}
	for _, p := range proj.Pending {
		resp.Pending = append(resp.Pending, PendingResponse{Leaf: p.Leaf.String(), Original: p.Original, Live: p.Live})
	}
	if resp.Notices == nil {
		resp.Notices = []editor.Notice{}
	}
	writeJSON(w, resp)
}

// handleHighlights evaluates ?q= against the current model without touching
// the editor's own query.
func (s *APIServer) handleHighlights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var idx filter.Index
	idx.SetQuery(r.URL.Query().Get("q"))
	writeJSON(w, matches(s.Editor.Model(), &idx))
}

// handleEdit accepts one wire command. ?phase=live|commit|abandon selects the
// text-edit phase; without it the command is dispatched.
func (s *APIServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var cmd session.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	intent, err := cmd.Intent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var up editor.Update
	switch phase := r.URL.Query().Get("phase"); phase {
	case "", "commit":
		if phase == "" {
			up, err = s.Editor.Dispatch(intent)
		} else {
			up, err = s.Editor.Commit(intent)
		}
	case "live":
		up, err = s.Editor.Live(intent)
	case "abandon":
		up, err = s.Editor.Abandon(intent)
	default:
		http.Error(w, "unknown phase "+strconv.Quote(phase), http.StatusBadRequest)
		return
	}
	resp := EditResponse{OK: err == nil, Notice: up.Notice}
	if err != nil {
		resp.Error = err.Error()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}
	writeJSON(w, resp)
}

func (s *APIServer) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.Editor.Clear()
	writeJSON(w, EditResponse{OK: true})
}

func (s *APIServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Journal == nil {
		writeJSON(w, []persistence.Entry{})
		return
	}
	q := r.URL.Query()
	query := persistence.JournalQuery{
		Session:   q.Get("session"),
		Direction: persistence.Direction(q.Get("direction")),
		Kind:      q.Get("kind"),
	}
	if query.Session == "" {
		query.Session = s.Session
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		query.Limit = limit
	}
	entries, err := s.Journal.Query(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []persistence.Entry{}
	}
	writeJSON(w, entries)
}

func matches(m *structure.Model, idx *filter.Index) []Match {
	out := []Match{}
	if !idx.Active() {
		return out
	}
	marks := idx.Marks(m)
	for _, pkg := range m.Packages {
		if marks.Package(pkg.Name) {
			out = append(out, Match{Kind: "package", Ref: structure.NodeRef{Package: pkg.Name}, Text: pkg.Name})
		}
		for _, file := range pkg.Files {
			fileRef := structure.NodeRef{Package: pkg.Name, File: file.Name}
			if marks.File(fileRef) {
				out = append(out, Match{Kind: "file", Ref: fileRef, Text: file.Name})
			}
			for _, st := range file.Structs {
				ref := fileRef.WithStruct(st.Name)
				if marks.Struct(ref) {
					out = append(out, Match{Kind: "struct", Ref: ref, Text: st.Name})
				}
				for i, field := range st.Fields {
					if marks.Field(ref, i) {
						out = append(out, Match{Kind: "field", Ref: ref, Index: gut.Ptr(i), Text: field.Name + " " + field.Type.Literal})
					}
				}
				for i, method := range st.Methods {
					if marks.Method(ref, i) {
						out = append(out, Match{Kind: "method", Ref: ref, Index: gut.Ptr(i), Text: method.Name})
					}
				}
			}
		}
	}
	for i, fn := range m.GlobalFunctions {
		if marks.Function(i) {
			out = append(out, Match{Kind: "function", Ref: structure.NodeRef{Package: fn.Package, File: fn.File}, Index: gut.Ptr(i), Text: fn.Name})
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
