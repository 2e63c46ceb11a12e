package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/sequencer"
	"github.com/gorilla/mux"
)

// EntryJSON is the JSON shape of a committed entry.
type EntryJSON struct {
	ID                int64      `json:"id"`
	Author            string     `json:"author"`
	Body              string     `json:"body"`
	Kind              string     `json:"kind"`
	Attachments       []string   `json:"attachments,omitempty"`
	CommittedAt       time.Time  `json:"committed_at"`
	ClientSubmittedAt *time.Time `json:"client_submitted_at,omitempty"`
	IdempotencyKey    string     `json:"idempotency_key,omitempty"`
}

func toJSON(e models.Entry) EntryJSON {
	out := EntryJSON{
		ID:             e.ID,
		Author:         e.Author,
		Body:           e.Body,
		Kind:           string(e.Kind),
		Attachments:    e.Attachments,
		CommittedAt:    e.CommittedAt,
		IdempotencyKey: e.IdempotencyKey,
	}
	if !e.ClientSubmittedAt.IsZero() {
		t := e.ClientSubmittedAt
		out.ClientSubmittedAt = &t
	}
	return out
}

// SubmitJSON is the request body of POST /api/entries.
type SubmitJSON struct {
	Body              string    `json:"body"`
	Kind              string    `json:"kind"`
	Attachments       []string  `json:"attachments"`
	ClientSubmittedAt time.Time `json:"client_submitted_at"`
	IdempotencyKey    string    `json:"idempotency_key"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st := s.notes.Status()
	resp := map[string]any{
		"status":        "ok",
		"max_id":        st.MaxID,
		"live_sessions": st.LiveSessions,
	}
	if !st.LastCommittedAt.IsZero() {
		resp["last_committed_at"] = st.LastCommittedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseInt(q url.Values, key string) (int64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, key)
	}
	return n, nil
}

func parseTime(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 time", common.ErrValidation, key)
	}
	return t, nil
}

// parseFilter reads after_id, up_to_id, author, since, until, text and
// limit from the query string.
func parseFilter(q url.Values) (entrystore.Filter, error) {
	var (
		f   entrystore.Filter
		err error
	)
	if f.AfterID, err = parseInt(q, "after_id"); err != nil {
		return f, err
	}
	if f.UpToID, err = parseInt(q, "up_to_id"); err != nil {
		return f, err
	}
	limit, err := parseInt(q, "limit")
	if err != nil {
		return f, err
	}
	f.Limit = int(limit)
	if f.Since, err = parseTime(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTime(q, "until"); err != nil {
		return f, err
	}
	f.Author = q.Get("author")
	f.Text = q.Get("text")
	return f, nil
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.notes.Query(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]EntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) submitEntry(w http.ResponseWriter, r *http.Request) {
	var req SubmitJSON
	dec := json.NewDecoder(io.LimitReader(r.Body, s.maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body: %w", common.ErrValidation, err))
		return
	}

	e, err := s.notes.Submit(r.Context(), userFrom(r), sequencer.Submission{
		Body:              req.Body,
		Kind:              models.ContentKind(req.Kind),
		Attachments:       req.Attachments,
		ClientSubmittedAt: req.ClientSubmittedAt,
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJSON(e))
}

func entryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad entry id", common.ErrValidation)
	}
	return id, nil
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	e, err := s.notes.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(e))
}

func (s *Server) renderEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	html, err := s.notes.Render(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="notes.csv"`)
	if err := s.notes.ExportCSV(r.Context(), w, f); err != nil {
		// Headers may already be out; the log is all that is left.
		s.logger.Error(r.Context(), "CSV export failed", "error", err)
	}
}

func (s *Server) stageAttachment(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: read upload: %w", common.ErrValidation, err))
		return
	}
	ref, err := s.notes.StageAttachment(r.Context(), userFrom(r), name, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": ref.Token})
}

func (s *Server) fetchAttachment(w http.ResponseWriter, r *http.Request) {
	a, err := s.notes.FetchAttachment(r.Context(), userFrom(r), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}
	if a.URL != "" && r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, a.URL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Ref.Name))
	_, _ = w.Write(a.Data)
}
