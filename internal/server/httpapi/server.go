// Package httpapi is the HTTP gateway: JSON endpoints for history and
// submission, CSV export, rendering, attachments and a WebSocket feed with
// CBOR frames.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/sequencer"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

type noteSvc interface {
	Status() services.Status
	Submit(ctx context.Context, author string, sub sequencer.Submission) (models.Entry, error)
	Get(ctx context.Context, id int64) (models.Entry, error)
	Query(ctx context.Context, f entrystore.Filter) ([]models.Entry, error)
	Render(ctx context.Context, id int64) (string, error)
	ExportCSV(ctx context.Context, w io.Writer, f entrystore.Filter) error
	StageAttachment(ctx context.Context, owner, name string, data []byte) (models.AttachmentRef, error)
	FetchAttachment(ctx context.Context, user, token string) (*services.Attachment, error)
	OpenFeed(ctx context.Context, req services.FeedRequest) (*services.Feed, error)
}

type Server struct {
	address        string
	notes          noteSvc
	logger         logging.Logger
	jwtSecret      []byte
	maxUploadBytes int64
}

func NewServer(address string, l logging.Logger, ns noteSvc, secretKey string, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &Server{
		address:        address,
		notes:          ns,
		logger:         l.With("module", "http_server"),
		jwtSecret:      []byte(secretKey),
		maxUploadBytes: maxUploadBytes,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.health)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)
	api.Methods(http.MethodGet).Path("/entries").HandlerFunc(s.listEntries)
	api.Methods(http.MethodPost).Path("/entries").HandlerFunc(s.submitEntry)
	api.Methods(http.MethodGet).Path("/entries/export.csv").HandlerFunc(s.exportCSV)
	api.Methods(http.MethodGet).Path("/entries/{id:[0-9]+}").HandlerFunc(s.getEntry)
	api.Methods(http.MethodGet).Path("/entries/{id:[0-9]+}/render").HandlerFunc(s.renderEntry)
	api.Methods(http.MethodPost).Path("/attachments").HandlerFunc(s.stageAttachment)
	api.Methods(http.MethodGet).Path("/attachments/{token}").HandlerFunc(s.fetchAttachment)
	api.Methods(http.MethodGet).Path("/subscribe").HandlerFunc(s.subscribe)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info(r.Context(), "handled", "method", r.Method, "url", r.URL.Path, "duration", m.Duration, "status", m.Code, "bytes", m.Written)
	})
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve handles requests on lis until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
