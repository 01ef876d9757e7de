// Package realtime maintains the widget's single websocket connection to
// the notification service and turns inbound frames into Bubble Tea
// messages.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nhle/bell/internal/client"
	"github.com/nhle/bell/internal/model"
)

// State is the connection state of the channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "online"
	default:
		return "offline"
	}
}

// Inbound event names.
const (
	EventNotification = "notification"
	EventDismiss      = "dismiss"
	EventMarkRead     = "mark-read"
)

// Outbound event names.
const (
	EventJoin                = "join"
	EmitMarkReadNotification = "markReadNotification"
	EmitDismissNotification  = "dismissNotification"
)

// HeaderInstanceID identifies this widget instance so siblings can be told
// apart server-side.
const HeaderInstanceID = "x-instance-id"

const (
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second
	eventBuffer      = 64
)

// EventMsg is a tea.Msg carrying one inbound event.
type EventMsg struct {
	Kind         string
	Notification model.Notification
	ID           string
}

// StatusMsg is a tea.Msg sent whenever the connection state changes.
type StatusMsg struct {
	State State
	Err   error
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	Room string `json:"room"`
}

type idPayload struct {
	NotificationID string `json:"notificationId"`
	SubscriberID   string `json:"subscriberId,omitempty"`
	LocationID     string `json:"locationId,omitempty"`
}

// Client owns at most one websocket connection at a time.
type Client struct {
	url          string
	apiKey       string
	subscriberID string
	locationID   string
	instanceID   string
	dialer       *websocket.Dialer
	logger       zerolog.Logger

	mu      gosync.Mutex
	writeMu gosync.Mutex
	conn    *websocket.Conn
	state   State

	events    chan tea.Msg
	done      chan struct{}
	closeOnce gosync.Once
}

// New creates a disconnected client for the subscriber/location in cfg.
func New(cfg model.Config, logger zerolog.Logger) *Client {
	return &Client{
		url:          strings.TrimRight(cfg.SocketURL, "/") + "/" + url.PathEscape(cfg.SubscriberID),
		apiKey:       cfg.WidgetKey,
		subscriberID: cfg.SubscriberID,
		locationID:   cfg.LocationID,
		instanceID:   uuid.New().String(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger.With().Str("component", "realtime").Logger(),
		events: make(chan tea.Msg, eventBuffer),
		done:   make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the service, authenticating with the widget headers, and
// joins the room for the configured location. On failure the client stays
// disconnected; there is no retry loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()
	c.send(StatusMsg{State: Connecting})

	header := http.Header{}
	header.Set(client.HeaderAPIKey, c.apiKey)
	header.Set(client.HeaderSubscriberID, c.subscriberID)
	header.Set(client.HeaderLocationID, c.locationID)
	header.Set(HeaderInstanceID, c.instanceID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dialing %s: HTTP %d: %w", c.url, resp.StatusCode, err)
		} else {
			err = fmt.Errorf("dialing %s: %w", c.url, err)
		}
		c.setState(Disconnected)
		c.logger.Warn().Err(err).Msg("connect_error")
		c.send(StatusMsg{State: Disconnected, Err: err})
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.write(EventJoin, joinPayload{Room: c.locationID}); err != nil {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.state = Disconnected
		c.mu.Unlock()
		err = fmt.Errorf("joining room %s: %w", c.locationID, err)
		c.send(StatusMsg{State: Disconnected, Err: err})
		return err
	}

	c.setState(Connected)
	c.logger.Info().Str("room", c.locationID).Msg("connected")
	c.send(StatusMsg{State: Connected})

	go c.readLoop(conn)
	return nil
}

// Disconnect closes the connection. The notification store is untouched.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	conn.Close()
}

// Close disconnects and stops delivering events.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.Disconnect()
		close(c.done)
	})
}

// ConnectCmd returns a tea.Cmd that connects in the background. The outcome
// arrives as StatusMsg through WaitForEvent.
func (c *Client) ConnectCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		defer cancel()
		_ = c.Connect(ctx)
		return nil
	}
}

// Toggle disconnects a live connection or reconnects a dead one.
func (c *Client) Toggle() tea.Cmd {
	if c.State() == Disconnected {
		return c.ConnectCmd()
	}
	c.Disconnect()
	return nil
}

// EmitMarkRead tells sibling widgets that id was marked read.
func (c *Client) EmitMarkRead(id string) error {
	return c.emitID(EmitMarkReadNotification, id)
}

// EmitDismiss tells sibling widgets that id was dismissed.
func (c *Client) EmitDismiss(id string) error {
	return c.emitID(EmitDismissNotification, id)
}

func (c *Client) emitID(event, id string) error {
	if c.State() != Connected {
		return nil
	}
	return c.write(event, idPayload{
		NotificationID: id,
		SubscriberID:   c.subscriberID,
		LocationID:     c.locationID,
	})
}

// write sends one envelope. gorilla connections allow a single writer.
func (c *Client) write(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("writing %s: %w", event, err)
	}
	return nil
}

// readLoop decodes frames until the connection drops.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			// A newer connection may already own the client; only the
			// current one may change its state.
			c.mu.Lock()
			current := c.conn == conn
			if current {
				c.conn = nil
				c.state = Disconnected
			}
			offline := c.conn == nil && c.state == Disconnected
			c.mu.Unlock()
			conn.Close()

			var reportErr error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reportErr = err
				c.logger.Warn().Err(err).Msg("disconnect")
			}
			if offline {
				c.send(StatusMsg{State: Disconnected, Err: reportErr})
			}
			return
		}

		msg, ok := decode(env)
		if !ok {
			c.logger.Debug().Str("event", env.Event).Msg("ignoring event")
			continue
		}
		c.send(msg)
	}
}

// decode maps an envelope to an EventMsg.
func decode(env envelope) (EventMsg, bool) {
	switch env.Event {
	case EventNotification:
		var n model.Notification
		if err := json.Unmarshal(env.Data, &n); err != nil || n.ID == "" {
			return EventMsg{}, false
		}
		return EventMsg{Kind: EventNotification, Notification: n, ID: n.ID}, true

	case EventDismiss, EventMarkRead:
		id := decodeID(env.Data)
		if id == "" {
			return EventMsg{}, false
		}
		return EventMsg{Kind: env.Event, ID: id}, true
	}
	return EventMsg{}, false
}

// decodeID accepts a bare JSON string, {"notificationId": ...} or {"id": ...}.
func decodeID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		NotificationID string `json:"notificationId"`
		ID             string `json:"id"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	if obj.NotificationID != "" {
		return obj.NotificationID
	}
	return obj.ID
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// send delivers msg to the Bubble Tea loop unless the client is closed.
func (c *Client) send(msg tea.Msg) {
	select {
	case c.events <- msg:
	case <-c.done:
	}
}

// WaitForEvent returns a tea.Cmd that waits for the next event or status
// change. Call it again after handling each message to keep listening.
func (c *Client) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-c.events:
			return msg
		case <-c.done:
			return nil
		}
	}
}
