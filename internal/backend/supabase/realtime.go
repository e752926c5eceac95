package supabase

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

	"github.com/gorilla/websocket"

	"taskboard/internal/service"
)

const (
	realtimePath = "/realtime/v1/websocket"

	// HeartbeatInterval is how often the realtime connection is kept alive.
	HeartbeatInterval = 25 * time.Second

	joinRef = "1"
)

// phoenixMessage is a realtime channel frame.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []postgresFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token"`
}

type postgresFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changePayload struct {
	Data struct {
		Type      string         `json:"type"`
		Record    map[string]any `json:"record"`
		OldRecord map[string]any `json:"old_record"`
	} `json:"data"`
}

// Topic returns the channel topic used for the table's change feed.
func (c *Client) Topic() string {
	return "realtime:" + c.table + "_changes"
}

// Subscribe joins the table's realtime channel and calls fn for every
// insert, update or delete. The connection is kept alive with heartbeats
// until the subscription is closed or ctx is done. A dropped connection is
// redialed with a fresh access token and fn then receives one EventUnknown,
// since changes made while disconnected were not delivered.
func (c *Client) Subscribe(ctx context.Context, fn func(service.Event)) (service.Subscription, error) {
	ch := &channel{
		topic:  c.Topic(),
		client: c,
		done:   make(chan struct{}),
	}
	if err := ch.connect(ctx); err != nil {
		return nil, err
	}

	ctx, ch.cancel = context.WithCancel(ctx)
	ch.wg.Add(2)
	go ch.readLoop(ctx, fn)
	go ch.heartbeatLoop(ctx)

	c.logger.Debug("realtime channel joined", "topic", ch.topic)
	return ch, nil
}

func (c *Client) accessToken() (string, error) {
	if c.tokens == nil {
		return c.anonKey, nil
	}
	token, err := c.tokens.Token()
	if err != nil {
		return "", wrapError(err)
	}
	return token.AccessToken, nil
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL + realtimePath)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("apikey", c.anonKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MaxReconnectDelay caps the wait between realtime reconnect attempts.
const MaxReconnectDelay = 30 * time.Second

// errChannelClosed is returned when a connection is set up after Close.
var errChannelClosed = errors.New("realtime channel closed")

// channel is an open realtime subscription.
type channel struct {
	topic  string
	client *Client
	cancel context.CancelFunc

	// writeMu guards conn and ref.
	writeMu sync.Mutex
	conn    *websocket.Conn
	ref     int

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func (ch *channel) closed() bool {
	select {
	case <-ch.done:
		return true
	default:
		return false
	}
}

// connect dials the realtime endpoint and joins the channel with the
// current access token.
func (ch *channel) connect(ctx context.Context) error {
	accessToken, err := ch.client.accessToken()
	if err != nil {
		return err
	}
	wsURL, err := ch.client.realtimeURL()
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect realtime: %w", wrapError(err))
	}
	if err := ch.setConn(conn); err != nil {
		return err
	}
	if err := ch.join(conn, ch.client.table, accessToken); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (ch *channel) setConn(conn *websocket.Conn) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if ch.closed() {
		conn.Close()
		return errChannelClosed
	}
	ch.conn = conn
	ch.ref = 0
	return nil
}

func (ch *channel) currentConn() *websocket.Conn {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return ch.conn
}

func (ch *channel) send(topic, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	ch.ref++
	msg := phoenixMessage{
		Topic:   topic,
		Event:   event,
		Payload: data,
		Ref:     strconv.Itoa(ch.ref),
	}
	if topic == ch.topic {
		msg.JoinRef = joinRef
	}
	ch.conn.SetWriteDeadline(time.Now().Add(APITimeout))
	return ch.conn.WriteJSON(msg)
}

// join sends phx_join and waits for the server's reply.
func (ch *channel) join(conn *websocket.Conn, table, accessToken string) error {
	var p joinPayload
	p.Config.PostgresChanges = []postgresFilter{{Event: "*", Schema: "public", Table: table}}
	p.AccessToken = accessToken

	if err := ch.send(ch.topic, "phx_join", p); err != nil {
		return fmt.Errorf("join realtime channel: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(APITimeout))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var msg phoenixMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("join realtime channel: %w", wrapError(err))
		}
		if msg.Event != "phx_reply" || msg.Ref != joinRef {
			continue
		}
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return fmt.Errorf("join realtime channel: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("join realtime channel: %s %s", reply.Status, strings.TrimSpace(string(reply.Response)))
		}
		return nil
	}
}

func (ch *channel) readLoop(ctx context.Context, fn func(service.Event)) {
	defer ch.wg.Done()
	conn := ch.currentConn()
	for {
		var msg phoenixMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ch.closed() {
				return
			}
			ch.client.logger.Warn("realtime connection lost", "err", err)
			conn.Close()
			if !ch.reconnect(ctx) {
				return
			}
			conn = ch.currentConn()
			fn(service.Event{Type: service.EventUnknown})
			continue
		}
		if msg.Topic != ch.topic || msg.Event != "postgres_changes" {
			continue
		}
		if ch.closed() {
			return
		}
		fn(parseChange(msg.Payload))
	}
}

// reconnect redials with backoff until it succeeds or the channel is closed.
func (ch *channel) reconnect(ctx context.Context) bool {
	delay := ch.client.reconnectDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ch.done:
			timer.Stop()
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		err := ch.connect(ctx)
		if err == nil {
			ch.client.logger.Info("realtime channel rejoined", "topic", ch.topic)
			return true
		}
		if ch.closed() || ctx.Err() != nil {
			return false
		}
		delay = min(delay*2, MaxReconnectDelay)
		ch.client.logger.Warn("realtime reconnect failed", "err", err, "retry_in", delay)
	}
}

func (ch *channel) heartbeatLoop(ctx context.Context) {
	defer ch.wg.Done()
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ch.shutdown()
			return
		case <-ticker.C:
			if err := ch.send("phoenix", "heartbeat", struct{}{}); err != nil {
				ch.client.logger.Warn("realtime heartbeat failed", "err", err)
			}
		}
	}
}

// shutdown leaves the channel and closes the connection. Safe to call more
// than once.
func (ch *channel) shutdown() {
	ch.once.Do(func() {
		close(ch.done)
		if err := ch.send(ch.topic, "phx_leave", struct{}{}); err != nil {
			ch.client.logger.Debug("realtime leave failed", "err", err)
		}
		ch.writeMu.Lock()
		ch.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ch.conn.Close()
		ch.writeMu.Unlock()
		ch.client.logger.Debug("realtime channel left", "topic", ch.topic)
	})
}

// Close implements service.Subscription.
func (ch *channel) Close() error {
	ch.cancel()
	ch.shutdown()
	ch.wg.Wait()
	return nil
}

func parseChange(raw json.RawMessage) service.Event {
	var p changePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return service.Event{Type: service.EventUnknown}
	}

	ev := service.Event{Type: service.EventUnknown}
	switch strings.ToUpper(p.Data.Type) {
	case "INSERT":
		ev.Type = service.EventInsert
	case "UPDATE":
		ev.Type = service.EventUpdate
	case "DELETE":
		ev.Type = service.EventDelete
	}

	for _, rec := range []map[string]any{p.Data.Record, p.Data.OldRecord} {
		if id, ok := rec["id"]; ok && id != nil {
			ev.ID = fmt.Sprint(id)
			break
		}
	}
	return ev
}
