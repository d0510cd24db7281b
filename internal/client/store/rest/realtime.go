package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Change is one row-level event pushed by the backend.
type Change struct {
	Table  string
	Type   string // INSERT, UPDATE or DELETE
	Record store.Row
}

// ChangeHandler receives changes on the read goroutine; it must not block.
type ChangeHandler func(Change)

// Realtime listens for table changes over the backend's websocket channel.
type Realtime struct {
	url       string
	log       logging.Logger
	heartbeat time.Duration
	dialer    *websocket.Dialer

	mu   sync.Mutex // serializes writes
	conn *websocket.Conn
	ref  int
}

// NewRealtime derives the socket URL from the HTTP base URL.
func NewRealtime(baseURL, apiKey string, log logging.Logger) *Realtime {
	ws := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	q := url.Values{"apikey": {apiKey}, "vsn": {"1.0.0"}}
	if log == nil {
		log = logging.Nop()
	}
	return &Realtime{
		url:       ws + "/realtime/v1/websocket?" + q.Encode(),
		log:       log,
		heartbeat: 30 * time.Second,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Listen joins one channel per table and delivers changes to h until ctx is
// done (returns nil) or the connection fails (returns the error).
func (r *Realtime) Listen(ctx context.Context, tables []string, h ChangeHandler) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	defer conn.Close()

	for _, t := range tables {
		if err := r.send("realtime:public:"+t, "phx_join", map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]any{{"event": "*", "schema": "public", "table": t}},
			},
		}); err != nil {
			return fmt.Errorf("realtime join %s: %w", t, err)
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := r.send("phoenix", "heartbeat", map[string]any{}); err != nil {
					r.log.Warn(ctx, "realtime heartbeat failed", "error", err)
				}
			}
		}
	}()

	r.log.Info(ctx, "realtime connected", "tables", tables)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return fmt.Errorf("realtime read: %w", err)
		}
		c, ok, recErr := parseChange(msg)
		if !ok {
			continue
		}
		if recErr != nil {
			// The table is still known, so the change is delivered without
			// its record.
			r.log.Debug(ctx, "realtime record not decoded", "table", c.Table, "type", c.Type, "error", recErr)
		}
		h(c)
	}
}

func (r *Realtime) send(topic, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ref++
	ref := strconv.Itoa(r.ref)
	return r.conn.WriteJSON(map[string]any{
		"topic":    topic,
		"event":    event,
		"payload":  payload,
		"ref":      ref,
		"join_ref": ref,
	})
}

// parseChange accepts both the legacy per-event frames and the
// "postgres_changes" envelope. recErr reports a record that could not be
// decoded; the returned Change then has a nil Record.
func parseChange(msg []byte) (c Change, ok bool, recErr error) {
	frame := gjson.ParseBytes(msg)

	data := frame.Get("payload")
	if frame.Get("event").String() == "postgres_changes" {
		data = frame.Get("payload.data")
	}

	typ := strings.ToUpper(data.Get("type").String())
	if typ == "" {
		typ = strings.ToUpper(frame.Get("event").String())
	}
	switch typ {
	case "INSERT", "UPDATE", "DELETE":
	default:
		return Change{}, false, nil
	}

	table := data.Get("table").String()
	if table == "" {
		// realtime:public:<table>
		parts := strings.Split(frame.Get("topic").String(), ":")
		table = parts[len(parts)-1]
	}
	if table == "" {
		return Change{}, false, nil
	}

	rec := data.Get("record")
	if typ == "DELETE" {
		rec = data.Get("old_record")
	}
	c = Change{Table: table, Type: typ}
	if rec.IsObject() {
		if err := json.Unmarshal([]byte(rec.Raw), &c.Record); err != nil {
			c.Record = nil
			recErr = fmt.Errorf("decode %s record: %w", table, err)
		}
	}
	return c, true, recErr
}
