package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// RPCError is the error object a FakeAria2 handler may return.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HandlerFunc answers one JSON-RPC method call.
type HandlerFunc func(params []json.RawMessage) (any, *RPCError)

// FakeAria2 emulates aria2's WebSocket JSON-RPC endpoint. It keeps a small
// in-memory task table so add/status/pause/unpause/remove behave plausibly.
type FakeAria2 struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []string
	params   map[string][]json.RawMessage
	tasks    map[string]map[string]string
	nextGID  int
	conns    map[*fakeConn]struct{}
}

type fakeConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *fakeConn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewFakeAria2 starts a fake engine; it is closed when the test ends.
func NewFakeAria2(t *testing.T) *FakeAria2 {
	t.Helper()

	f := &FakeAria2{
		handlers: make(map[string]HandlerFunc),
		params:   make(map[string][]json.RawMessage),
		tasks:    make(map[string]map[string]string),
		conns:    make(map[*fakeConn]struct{}),
	}
	f.installDefaults()

	mux := http.NewServeMux()
	mux.HandleFunc("/jsonrpc", f.serve)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	return f
}

// URL returns the ws:// endpoint of the fake.
func (f *FakeAria2) URL() string {
	return "ws" + strings.TrimPrefix(f.Server.URL, "http") + "/jsonrpc"
}

// Close drops every connection and stops the server.
func (f *FakeAria2) Close() {
	f.mu.Lock()
	for c := range f.conns {
		c.ws.Close()
	}
	f.mu.Unlock()
	f.Server.Close()
}

// Handle overrides the handler for method.
func (f *FakeAria2) Handle(method string, h HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Calls returns the methods received so far, in order.
func (f *FakeAria2) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// LastParams returns the params of the most recent call to method.
func (f *FakeAria2) LastParams(method string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[method]
}

// SetTask installs or replaces a task record as tellStatus returns it.
func (f *FakeAria2) SetTask(gid string, fields map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := map[string]string{"gid": gid}
	for k, v := range fields {
		task[k] = v
	}
	f.tasks[gid] = task
}

// Notify pushes an aria2 event notification to every connected client.
func (f *FakeAria2) Notify(method, gid string) {
	f.mu.Lock()
	conns := make([]*fakeConn, 0, len(f.conns))
	for c := range f.conns {
		conns = append(conns, c)
	}
	f.mu.Unlock()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  []map[string]string{{"gid": gid}},
	}
	for _, c := range conns {
		c.write(msg)
	}
}

func (f *FakeAria2) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &fakeConn{ws: ws}

	f.mu.Lock()
	f.conns[conn] = struct{}{}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.conns, conn)
		f.mu.Unlock()
		ws.Close()
	}()

	for {
		var req struct {
			ID     string            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := ws.ReadJSON(&req); err != nil {
			return
		}

		f.mu.Lock()
		f.calls = append(f.calls, req.Method)
		f.params[req.Method] = req.Params
		h := f.handlers[req.Method]
		f.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if h == nil {
			resp["error"] = RPCError{Code: 1, Message: "No such method: " + req.Method}
		} else if result, rpcErr := h(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		if err := conn.write(resp); err != nil {
			return
		}
	}
}

func (f *FakeAria2) installDefaults() {
	f.handlers["aria2.getVersion"] = func([]json.RawMessage) (any, *RPCError) {
		return map[string]any{"version": "1.37.0", "enabledFeatures": []string{"BitTorrent"}}, nil
	}
	f.handlers["aria2.addUri"] = func([]json.RawMessage) (any, *RPCError) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextGID++
		gid := fmt.Sprintf("2089b05ecca3d%03d", f.nextGID)
		f.tasks[gid] = map[string]string{
			"gid":             gid,
			"status":          "waiting",
			"totalLength":     "0",
			"completedLength": "0",
			"downloadSpeed":   "0",
		}
		return gid, nil
	}
	f.handlers["aria2.tellStatus"] = func(params []json.RawMessage) (any, *RPCError) {
		return f.withTask(params, true, func(task map[string]string) {})
	}
	f.handlers["aria2.pause"] = func(params []json.RawMessage) (any, *RPCError) {
		return f.withTask(params, false, func(task map[string]string) { task["status"] = "paused" })
	}
	f.handlers["aria2.unpause"] = func(params []json.RawMessage) (any, *RPCError) {
		return f.withTask(params, false, func(task map[string]string) { task["status"] = "waiting" })
	}
	f.handlers["aria2.remove"] = func(params []json.RawMessage) (any, *RPCError) {
		return f.withTask(params, false, func(task map[string]string) { task["status"] = "removed" })
	}
	f.handlers["aria2.getGlobalStat"] = func([]json.RawMessage) (any, *RPCError) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var active, speed int
		for _, task := range f.tasks {
			if task["status"] == "active" {
				active++
				var s int
				fmt.Sscan(task["downloadSpeed"], &s)
				speed += s
			}
		}
		return map[string]string{
			"downloadSpeed": fmt.Sprint(speed),
			"uploadSpeed":   "0",
			"numActive":     fmt.Sprint(active),
			"numWaiting":    "0",
			"numStopped":    "0",
		}, nil
	}
	f.handlers["aria2.shutdown"] = func([]json.RawMessage) (any, *RPCError) {
		return "OK", nil
	}
}

// withTask runs mutate on the task named by params[0] and returns either a
// copy of the task record or, as aria2's control methods do, the gid.
func (f *FakeAria2) withTask(params []json.RawMessage, returnTask bool, mutate func(map[string]string)) (any, *RPCError) {
	if len(params) == 0 {
		return nil, &RPCError{Code: 1, Message: "missing gid"}
	}
	var gid string
	if err := json.Unmarshal(params[0], &gid); err != nil {
		return nil, &RPCError{Code: 1, Message: "invalid gid"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[gid]
	if !ok {
		return nil, &RPCError{Code: 1, Message: fmt.Sprintf("GID %s is not found", gid)}
	}
	mutate(task)

	if !returnTask {
		return gid, nil
	}
	snapshot := make(map[string]string, len(task))
	for k, v := range task {
		snapshot[k] = v
	}
	return snapshot, nil
}
