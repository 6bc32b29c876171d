package ws

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-pgp/internal/compiler"
	"github.com/coreman2200/funtimes-pgp/internal/config"
	diag "github.com/coreman2200/funtimes-pgp/internal/diagnostics"
	"github.com/coreman2200/funtimes-pgp/internal/indicator"
	"github.com/coreman2200/funtimes-pgp/internal/linegen"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/scene"
	"github.com/coreman2200/funtimes-pgp/internal/transport"
)

type State struct {
	mu         sync.RWMutex
	Config     *config.Config
	ConfigPath string
	// Loader resolves scene paths sent over /control. Its Dir bounds where
	// image and script files are read from.
	Loader    *scene.Loader
	Indicator *indicator.Indicator

	tr        *transport.Transport
	last      *compiler.Result
	jobs      uint64
	bytesSent uint64
	startTime time.Time

	decMu   sync.Mutex
	decoder pgp.Decoder

	clientsMu   sync.Mutex
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool

	upgrader websocket.Upgrader
}

func NewState(cfg *config.Config, configPath string) *State {
	return &State{
		Config:      cfg,
		ConfigPath:  configPath,
		Loader:      &scene.Loader{},
		Indicator:   indicator.New(nil),
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handler routes the daemon's endpoints.
func (s *State) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/status", s.HandleStatusWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

// Request is one /control message.
type Request struct {
	Op      string          `json:"op"`
	Scene   json.RawMessage `json:"scene,omitempty"`
	Backend string          `json:"backend,omitempty"`
	Port    string          `json:"port,omitempty"`
	Baud    int             `json:"baud,omitempty"`
	Lines   int             `json:"lines,omitempty"`
}

// Summary describes a compiled program without its bytes.
type Summary struct {
	Bytes       int                  `json:"bytes"`
	Frames      int                  `json:"frames"`
	Branching   bool                 `json:"branching"`
	Lines       int                  `json:"lines"`
	Warnings    []string             `json:"warnings,omitempty"`
	Transitions []linegen.Transition `json:"transitions,omitempty"`
	Vars        map[int]int          `json:"vars,omitempty"`
}

type Response struct {
	Op          string               `json:"op"`
	OK          bool                 `json:"ok"`
	Error       string               `json:"error,omitempty"`
	Sent        int                  `json:"sent,omitempty"`
	Result      *Summary             `json:"result,omitempty"`
	Ports       []transport.PortInfo `json:"ports,omitempty"`
	Diagnostics []diag.Diagnostic    `json:"diagnostics,omitempty"`
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(conn, Response{Op: "?", Error: err.Error(), Diagnostics: diag.FromError(err)})
			continue
		}
		s.reply(conn, s.apply(r.Context(), req))
	}
}

func (s *State) reply(conn *websocket.Conn, resp Response) {
	b, _ := json.Marshal(resp)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *State) apply(ctx context.Context, req Request) Response {
	resp := Response{Op: req.Op}
	var err error
	switch req.Op {
	case "connect":
		err = s.connect(ctx, req)
	case "disconnect":
		err = s.disconnect()
	case "compile":
		var res *compiler.Result
		res, err = s.compile(req.Scene)
		if res != nil {
			resp.Result = summarize(res)
			resp.Diagnostics = diag.FromWarnings(res.Warnings)
		}
	case "print":
		var res *compiler.Result
		res, resp.Sent, err = s.print(ctx, req.Scene)
		if res != nil {
			resp.Result = summarize(res)
		}
	case "feed":
		lines := req.Lines
		if lines <= 0 {
			lines = compiler.TrailerFeed
		}
		if lines > 0xFFFF {
			err = &pgp.ContractError{Op: "feed", Detail: "lines exceed 65535"}
			break
		}
		resp.Sent, err = s.send(ctx, pgp.Feed(uint16(lines)).Bytes())
	case "stop":
		resp.Sent, err = s.send(ctx, pgp.Stop().Bytes())
	case "ports":
		resp.Ports, err = transport.ListPorts()
	default:
		err = errors.New("unknown op " + req.Op)
	}
	if err != nil {
		resp.Error = err.Error()
		ds := diag.FromError(err)
		resp.Diagnostics = append(resp.Diagnostics, ds...)
		for _, d := range ds {
			s.pushDiag(d)
		}
		log.Warn().Err(err).Str("op", req.Op).Msg("control")
		return resp
	}
	resp.OK = true
	return resp
}

// Connect opens the configured device, as a /control connect would.
func (s *State) Connect(ctx context.Context) Response {
	return s.apply(ctx, Request{Op: "connect"})
}

func (s *State) connect(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tr != nil && s.tr.Connected() {
		return transport.ErrAlreadyConnected
	}
	dev := s.Config.Device
	if req.Backend != "" {
		dev.Backend = req.Backend
	}
	if req.Port != "" {
		dev.Port = req.Port
	}
	if req.Baud > 0 {
		dev.Baud = req.Baud
	}
	cfg := *s.Config
	cfg.Device = dev
	if err := cfg.Validate(); err != nil {
		return err
	}
	tr, err := cfg.Transport()
	if err != nil {
		return err
	}
	tr.SetReceiver(s.onDevice)
	if err := tr.Connect(ctx); err != nil {
		s.setIndicator(indicator.Failed)
		return err
	}
	s.tr = tr
	s.Config.Device = dev
	s.setIndicator(indicator.Connected)
	s.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TRANSPORT.CONNECTED", Summary: "Connected", Evidence: map[string]any{"port": dev.Port, "backend": dev.Backend}})
	s.saveConfig()
	return nil
}

func (s *State) disconnect() error {
	s.mu.Lock()
	tr := s.tr
	s.tr = nil
	s.mu.Unlock()
	if tr == nil {
		return transport.ErrNotConnected
	}
	err := tr.Disconnect()
	s.setIndicator(indicator.Idle)
	return err
}

func (s *State) compile(raw json.RawMessage) (*compiler.Result, error) {
	if len(raw) == 0 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.last == nil {
			return nil, errors.New("no scene given and nothing compiled yet")
		}
		return s.last, nil
	}
	p, err := s.Loader.Parse(raw)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	s.mu.RLock()
	opts := compiler.Options{MaxLines: s.Config.Compile.MaxLines}
	s.mu.RUnlock()
	res, err := compiler.Compile(p, opts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
	return res, nil
}

func (s *State) print(ctx context.Context, raw json.RawMessage) (*compiler.Result, int, error) {
	res, err := s.compile(raw)
	if err != nil {
		return nil, 0, err
	}
	for _, d := range diag.FromWarnings(res.Warnings) {
		s.pushDiag(d)
	}
	s.setIndicator(indicator.Printing)
	n, err := s.send(ctx, res.Bytes)
	if err != nil {
		s.setIndicator(indicator.Failed)
		return res, n, err
	}
	s.setIndicator(indicator.Connected)
	s.mu.Lock()
	s.jobs++
	s.mu.Unlock()
	return res, n, nil
}

func (s *State) send(ctx context.Context, data []byte) (int, error) {
	s.mu.RLock()
	tr := s.tr
	s.mu.RUnlock()
	if tr == nil {
		return 0, &transport.Error{Op: "send", Err: transport.ErrNotConnected}
	}
	n, err := tr.Send(ctx, data)
	s.mu.Lock()
	s.bytesSent += uint64(n)
	s.mu.Unlock()
	return n, err
}

func (s *State) setIndicator(st indicator.State) {
	if s.Indicator == nil {
		return
	}
	if err := s.Indicator.Set(st); err != nil {
		log.Debug().Err(err).Msg("indicator")
	}
}

// onDevice runs on the transport read loop.
func (s *State) onDevice(b []byte) {
	s.decMu.Lock()
	frames := s.decoder.Feed(b)
	s.decMu.Unlock()
	type frame struct {
		Cmd     string `json:"cmd"`
		Payload string `json:"payload"`
	}
	msg := struct {
		T      int64   `json:"t"`
		Raw    string  `json:"raw"`
		Frames []frame `json:"frames,omitempty"`
	}{T: time.Now().UnixNano(), Raw: hex.EncodeToString(b)}
	for _, f := range frames {
		msg.Frames = append(msg.Frames, frame{Cmd: f.Command().String(), Payload: hex.EncodeToString(f.Payload())})
	}
	out, _ := json.Marshal(msg)
	s.broadcast(s.clients, out)
}

func (s *State) HandleStatusWS(w http.ResponseWriter, r *http.Request) {
	s.subscribe(w, r, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	s.subscribe(w, r, s.diagClients)
}

func (s *State) subscribe(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.clientsMu.Lock()
	set[conn] = true
	s.clientsMu.Unlock()
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(set, conn)
			s.clientsMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := map[string]any{
		"uptime_s":   time.Since(s.startTime).Seconds(),
		"connected":  s.tr != nil && s.tr.Connected(),
		"backend":    s.Config.Device.Backend,
		"port":       s.Config.Device.Port,
		"jobs":       s.jobs,
		"bytes_sent": s.bytesSent,
	}
	if s.last != nil {
		resp["last"] = summarize(s.last)
	}
	if s.Indicator != nil {
		resp["indicator"] = s.Indicator.State().String()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Close disconnects the device. Subscribed sockets close with the server.
func (s *State) Close() error {
	err := s.disconnect()
	if errors.Is(err, transport.ErrNotConnected) {
		return nil
	}
	return err
}

func (s *State) saveConfig() {
	if s.ConfigPath == "" {
		return
	}
	if err := config.Save(s.ConfigPath, s.Config); err != nil {
		log.Warn().Err(err).Str("path", s.ConfigPath).Msg("save config")
	}
}

func (s *State) broadcast(set map[*websocket.Conn]bool, b []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range set {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write status")
		}
	}
}

func (s *State) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.broadcast(s.diagClients, b)
}

func summarize(r *compiler.Result) *Summary {
	return &Summary{
		Bytes:       len(r.Bytes),
		Frames:      len(r.Frames),
		Branching:   r.Branching,
		Lines:       r.Lines,
		Warnings:    r.Warnings,
		Transitions: r.Transitions,
		Vars:        r.Vars,
	}
}
