package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// Frame types on the WebSocket feed.
const (
	FrameHello = "hello"
	FrameEntry = "entry"
	FrameAck   = "ack"
	FrameError = "error"
)

// Frame is one CBOR message on the feed. The server sends hello, entry and
// error frames; the client sends ack frames.
type Frame struct {
	Type      string     `cbor:"type"`
	SessionID string     `cbor:"session_id,omitempty"`
	StartID   int64      `cbor:"start_id,omitempty"`
	EntryID   int64      `cbor:"entry_id,omitempty"`
	Entry     *FrameItem `cbor:"entry,omitempty"`
	Error     string     `cbor:"error,omitempty"`
}

// FrameItem is a committed entry inside an entry frame. Times are Unix
// nanoseconds.
type FrameItem struct {
	ID                int64    `cbor:"id"`
	Author            string   `cbor:"author"`
	Body              string   `cbor:"body"`
	Kind              string   `cbor:"kind"`
	Attachments       []string `cbor:"attachments,omitempty"`
	CommittedAt       int64    `cbor:"committed_at"`
	ClientSubmittedAt int64    `cbor:"client_submitted_at,omitempty"`
}

var frameEncMode cbor.EncMode

func init() {
	var err error
	frameEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("httpapi: CBOR encoder initialization failed: " + err.Error())
	}
}

// EncodeFrame and DecodeFrame are the feed's wire codec.
func EncodeFrame(f Frame) ([]byte, error) {
	return frameEncMode.Marshal(f)
}

func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	err := cbor.Unmarshal(b, &f)
	return f, err
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	afterID, err := parseInt(q, "after_id")
	if err != nil {
		writeError(w, err)
		return
	}
	resume, _ := strconv.ParseBool(q.Get("resume"))
	device := q.Get("device")
	if device == "" {
		device = r.Header.Get(common.DeviceHeaderName)
	}
	if device == "" {
		device = "default"
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	user := userFrom(r)
	feed, err := s.notes.OpenFeed(ctx, services.FeedRequest{
		User:       user,
		Device:     device,
		Credential: auth.Credential{Kind: auth.CredentialToken, Secret: tokenFrom(r)},
		AfterID:    afterID,
		Resume:     resume,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	defer feed.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(ctx, "failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	s.logger.Info(ctx, "WebSocket subscriber attached", "session", feed.SessionID(), "user", user, "device", device)

	// Reader: acks from the client. Any read error ends the session.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f, err := DecodeFrame(b)
			if err != nil || f.Type != FrameAck {
				s.logger.Warn(ctx, "Ignoring client frame", "session", feed.SessionID(), "error", err)
				continue
			}
			if err := feed.Ack(ctx, f.EntryID); err != nil {
				s.logger.Warn(ctx, "Ack rejected", "session", feed.SessionID(), "entry_id", f.EntryID, "error", err)
			}
		}
	}()

	// Pings keep the read deadline alive while the feed is idle.
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	if err := s.send(conn, Frame{Type: FrameHello, SessionID: feed.SessionID(), StartID: feed.StartID()}); err != nil {
		return
	}

	for {
		e, err := feed.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				_, msg := statusFor(err)
				_ = s.send(conn, Frame{Type: FrameError, Error: msg})
			}
			s.logger.Info(ctx, "WebSocket subscriber detached", "session", feed.SessionID(), "error", err)
			return
		}
		item := &FrameItem{
			ID:          e.ID,
			Author:      e.Author,
			Body:        e.Body,
			Kind:        string(e.Kind),
			Attachments: e.Attachments,
			CommittedAt: e.CommittedAt.UnixNano(),
		}
		if !e.ClientSubmittedAt.IsZero() {
			item.ClientSubmittedAt = e.ClientSubmittedAt.UnixNano()
		}
		if err := s.send(conn, Frame{Type: FrameEntry, Entry: item}); err != nil {
			return
		}
	}
}

// send writes one frame. Only the feed loop writes data frames; control
// frames may be written concurrently per gorilla/websocket's rules.
func (s *Server) send(conn *websocket.Conn, f Frame) error {
	b, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.BinaryMessage, b)
}
