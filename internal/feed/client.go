package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConfig configures WebSocket client behavior.
type ClientConfig struct {
	// HandshakeTimeout bounds the dial handshake.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds waiting for a subscription confirmation.
	SubscribeTimeout time.Duration
	// Commitment is the confirmation level requested on subscriptions.
	Commitment string
}

// DefaultClientConfig returns default WebSocket configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		Commitment:       "confirmed",
	}
}

// LogsFilter defines subscription filter for transaction logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification is one logsNotification message.
type LogNotification struct {
	Signature string
	Slot      uint64
	Logs      []string
	Err       interface{}
}

// AccountNotification is one programNotification message.
type AccountNotification struct {
	Pubkey string
	Owner  string
	Slot   uint64
	Data   []byte
}

// Client is a single-connection JSON-RPC subscription client. It does not
// reconnect: when the connection drops the Done channel closes and the owner
// (a Subscription worker) dials a fresh client and resubscribes.
type Client struct {
	endpoint string
	config   ClientConfig
	logger   *log.Logger

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	logSubs     map[int64]chan LogNotification
	accountSubs map[int64]chan AccountNotification
	subsMu      sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done    chan struct{}
	doneErr error
	doneMu  sync.Mutex
	wg      sync.WaitGroup
}

// Dial connects to the endpoint and starts the read and ping loops.
func Dial(ctx context.Context, endpoint string, config *ClientConfig, logger *log.Logger) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &Client{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger,
		conn:        conn,
		logSubs:     make(map[int64]chan LogNotification),
		accountSubs: make(map[int64]chan AccountNotification),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Done closes when the connection is dead. Err reports why.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that terminated the connection, nil before Done closes
// and nil after a clean Close.
func (c *Client) Err() error {
	c.doneMu.Lock()
	defer c.doneMu.Unlock()
	return c.doneErr
}

// SubscribeLogs subscribes to transaction logs matching the filter.
func (c *Client) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	mentions := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentions["mentions"] = filter.Mentions
	} else {
		mentions["all"] = nil
	}

	subID, err := c.subscribe(ctx, "logsSubscribe", []interface{}{
		mentions,
		map[string]string{"commitment": c.config.Commitment},
	})
	if err != nil {
		return nil, err
	}

	// Blocking send downstream ensures no event loss; buffer absorbs bursts.
	ch := make(chan LogNotification, 10000)
	c.subsMu.Lock()
	c.logSubs[subID] = ch
	c.subsMu.Unlock()

	return ch, nil
}

// SubscribeProgramAccounts subscribes to account updates for accounts owned by
// the program, with base64-encoded data.
func (c *Client) SubscribeProgramAccounts(ctx context.Context, program string) (<-chan AccountNotification, error) {
	subID, err := c.subscribe(ctx, "programSubscribe", []interface{}{
		program,
		map[string]string{
			"commitment": c.config.Commitment,
			"encoding":   "base64",
		},
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan AccountNotification, 10000)
	c.subsMu.Lock()
	c.accountSubs[subID] = ch
	c.subsMu.Unlock()

	return ch, nil
}

// subscribe sends a subscription request and waits for the confirmation.
func (c *Client) subscribe(ctx context.Context, method string, params []interface{}) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	removePending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		removePending()
		return 0, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case subID, ok := <-confirmCh:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		removePending()
		return 0, fmt.Errorf("%s confirmation timeout after %s", method, c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("connection lost")
	case <-ctx.Done():
		removePending()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection and all subscription channels.
func (c *Client) Close() error {
	return c.shutdown(nil)
}

func (c *Client) shutdown(cause error) error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	c.doneMu.Lock()
	c.doneErr = cause
	c.doneMu.Unlock()
	close(c.done)

	c.writeMu.Lock()
	if cause == nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	c.conn.Close()
	c.writeMu.Unlock()

	// Both loops must be gone before the subscription channels close, the
	// read loop may be mid-send into one of them.
	c.wg.Wait()

	c.subsMu.Lock()
	for id, ch := range c.logSubs {
		close(ch)
		delete(c.logSubs, id)
	}
	for id, ch := range c.accountSubs {
		close(ch)
		delete(c.accountSubs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	return nil
}

// readLoop reads messages from the WebSocket and dispatches to subscribers.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				go c.shutdown(fmt.Errorf("websocket read: %w", err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			// Write errors surface on the read side as well.
			_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
		}
	}
}

// handleMessage processes one incoming WebSocket message.
func (c *Client) handleMessage(message []byte) {
	// Subscription confirmation first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 && resp.ID > 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Params != nil {
		switch notif.Method {
		case "logsNotification":
			c.handleLogsNotification(&notif)
			return
		case "programNotification":
			c.handleProgramNotification(&notif)
			return
		}
	}

	var errResp struct {
		ID    uint64 `json:"id"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		// Subscription will time out on the caller side.
		c.logger.Printf("[feed] rpc error response: code=%d msg=%s", errResp.Error.Code, errResp.Error.Message)
	}
}

func (c *Client) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

func (c *Client) handleLogsNotification(notif *wsNotification) {
	var result wsLogsResult
	if err := json.Unmarshal(notif.Params.Result, &result); err != nil {
		c.logger.Printf("[feed] malformed logs notification: %v", err)
		return
	}

	logNotif := LogNotification{
		Signature: result.Value.Signature,
		Logs:      result.Value.Logs,
		Err:       result.Value.Err,
	}
	if result.Context != nil {
		logNotif.Slot = result.Context.Slot
	}

	c.subsMu.RLock()
	ch, ok := c.logSubs[notif.Params.Subscription]
	c.subsMu.RUnlock()

	if ok {
		// Block until we can send - never drop events
		select {
		case ch <- logNotif:
		case <-c.done:
		}
	}
}

func (c *Client) handleProgramNotification(notif *wsNotification) {
	var result wsProgramResult
	if err := json.Unmarshal(notif.Params.Result, &result); err != nil {
		c.logger.Printf("[feed] malformed program notification: %v", err)
		return
	}

	// Data arrives as ["<base64>", "base64"]
	var raw []byte
	if len(result.Value.Account.Data) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(result.Value.Account.Data[0])
		if err != nil {
			c.logger.Printf("[feed] undecodable account data for %s: %v", result.Value.Pubkey, err)
			return
		}
		raw = decoded
	}

	acctNotif := AccountNotification{
		Pubkey: result.Value.Pubkey,
		Owner:  result.Value.Account.Owner,
		Data:   raw,
	}
	if result.Context != nil {
		acctNotif.Slot = result.Context.Slot
	}

	c.subsMu.RLock()
	ch, ok := c.accountSubs[notif.Params.Subscription]
	c.subsMu.RUnlock()

	if ok {
		select {
		case ch <- acctNotif:
		case <-c.done:
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsLogsResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}

type wsProgramResult struct {
	Context *wsContext     `json:"context"`
	Value   wsProgramValue `json:"value"`
}

type wsProgramValue struct {
	Pubkey  string           `json:"pubkey"`
	Account wsProgramAccount `json:"account"`
}

type wsProgramAccount struct {
	Data  []string `json:"data"`
	Owner string   `json:"owner"`
}
