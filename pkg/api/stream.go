package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

const (
	streamBuffer = 16
	writeTimeout = 10 * time.Second
)

// StreamMessage is sent on a change stream. The first message of a stream
// has Type "state"; later ones carry the operation name.
type StreamMessage struct {
	Type string `json:"type"`
	StateResponse
}

type stream struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (st *stream) close() {
	st.once.Do(func() {
		close(st.done)
		st.conn.Close()
	})
}

// enqueue never blocks the store. A client that falls behind is dropped.
func (st *stream) enqueue(data []byte) {
	select {
	case st.send <- data:
	case <-st.done:
	default:
		st.close()
	}
}

func (st *stream) writeLoop() {
	for {
		select {
		case data := <-st.send:
			st.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := st.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				st.close()
				return
			}
		case <-st.done:
			return
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		s.logger.Warn("stream upgrade failed", "key", key, "error", ferrors.New("A003").Wrap(err))
		return
	}

	st := &stream{
		conn: conn,
		send: make(chan []byte, streamBuffer),
		done: make(chan struct{}),
	}

	// Subscribe before the snapshot so no change is lost in between.
	unsubscribe := s.store.Subscribe(func(c filters.Change) {
		if c.Key != key {
			return
		}
		msg := StreamMessage{
			Type: c.Op.String(),
			StateResponse: StateResponse{
				Key:     key,
				Exists:  !c.Deleted,
				Values:  c.State.Values,
				Filters: c.State.Filters,
				Query:   c.State.Query,
			},
		}
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Warn("stream encode failed", "key", key, "error", err)
			return
		}
		st.enqueue(data)
	})
	defer unsubscribe()

	snapshot, err := json.Marshal(StreamMessage{Type: "state", StateResponse: s.stateResponse(key)})
	if err != nil {
		st.close()
		return
	}
	st.enqueue(snapshot)

	s.mu.Lock()
	s.streams[st] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("stream opened", "key", key)

	go st.writeLoop()

	// Keep the connection until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	st.close()
	s.mu.Lock()
	delete(s.streams, st)
	s.mu.Unlock()
	s.logger.Debug("stream closed", "key", key)
}
