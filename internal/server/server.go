package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/galvonium/galvolink/internal/controller"
	"github.com/galvonium/galvolink/internal/device"
	"github.com/galvonium/galvolink/internal/galvo"
	"github.com/galvonium/galvolink/internal/logger"
)

// Server hosts the dashboard: it serves the embedded web UI, exposes the
// buffer/device REST API, and pushes controller events to WebSocket clients.
type Server struct {
	cfg    *Config
	ctrl   *controller.Controller
	webFS  fs.FS
	logger *logger.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients. Exactly one of
// the optional payloads is set per frame.
type Frame struct {
	Buffer     *BufferState     `json:"buffer,omitempty"`
	Terminal   *TerminalLine    `json:"terminal,omitempty"`
	Connection *ConnectionState `json:"connection,omitempty"`
	Progress   *ProgressState   `json:"progress,omitempty"`
	Status     string           `json:"status,omitempty"`
	Error      string           `json:"error,omitempty"`
	Stamp      int64            `json:"stamp"` // Unix ms
}

// BufferState is the full host-side buffer snapshot pushed after any change.
type BufferState struct {
	Steps        []galvo.StepValues `json:"steps"`
	LastUsed     int                `json:"lastUsed"`
	SizeForWrite int                `json:"sizeForWrite"`
}

// TerminalLine is one raw protocol line for the terminal pane.
type TerminalLine struct {
	Dir  string `json:"dir"` // "tx" or "rx"
	Line string `json:"line"`
}

// ConnectionState reports device connection changes.
type ConnectionState struct {
	Connected bool   `json:"connected"`
	Name      string `json:"name,omitempty"`
}

// ProgressState reports multi-command operation progress.
type ProgressState struct {
	Op    string `json:"op"`
	Sent  int    `json:"sent"`
	Total int    `json:"total"`
}

// New creates a new Server and wires the controller's callbacks to the
// WebSocket broadcast and the traffic logger.
func New(cfg *Config, webFS fs.FS) *Server {
	s := &Server{
		cfg:   cfg,
		webFS: webFS,
		logger: logger.New(logger.Config{
			Enabled: cfg.Logging.Enabled,
			Path:    cfg.Logging.Path,
		}),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.ctrl = controller.New(controller.Callbacks{
		BufferChanged: func(buf *galvo.Buffer) {
			s.broadcast(Frame{Buffer: bufferState(buf)})
		},
		Line: func(dir controller.Direction, line string) {
			s.logger.Record(string(dir), line)
			s.broadcast(Frame{Terminal: &TerminalLine{Dir: string(dir), Line: line}})
		},
		Progress: func(op string, sent, total int) {
			s.broadcast(Frame{Progress: &ProgressState{Op: op, Sent: sent, Total: total}})
		},
		Status: func(msg string) {
			s.broadcast(Frame{Status: msg})
		},
		Error: func(err error) {
			log.Printf("[server] controller error: %v", err)
			s.broadcast(Frame{Error: err.Error()})
		},
		Connection: func(connected bool) {
			s.broadcast(Frame{Connection: &ConnectionState{Connected: connected}})
		},
	})
	return s
}

// Controller exposes the transfer orchestrator, mainly for main's
// auto-connect loop.
func (s *Server) Controller() *controller.Controller { return s.ctrl }

func bufferState(buf *galvo.Buffer) *BufferState {
	return &BufferState{
		Steps:        buf.Snapshot(),
		LastUsed:     buf.LastUsedIndex(),
		SizeForWrite: buf.SizeForWrite(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	// Serve embedded web files
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWS)

	// Config API
	mux.HandleFunc("/api/config", s.handleConfig)

	// Buffer API (local model)
	mux.HandleFunc("/api/buffer", s.handleBuffer)
	mux.HandleFunc("/api/buffer/step", s.handleBufferStep)
	mux.HandleFunc("/api/buffer/steps", s.handleBufferSteps)
	mux.HandleFunc("/api/buffer/clear", s.handleBufferClear)

	// Device API (serial link)
	mux.HandleFunc("/api/ports", s.handlePorts)
	mux.HandleFunc("/api/device/connect", s.handleDeviceConnect)
	mux.HandleFunc("/api/device/disconnect", s.handleDeviceDisconnect)
	mux.HandleFunc("/api/device/write", s.handleDeviceWrite)
	mux.HandleFunc("/api/device/load", s.handleDeviceLoad)
	mux.HandleFunc("/api/device/swap", s.handleDeviceSwap)
	mux.HandleFunc("/api/device/clear", s.handleDeviceClear)
	mux.HandleFunc("/api/command", s.handleCommand)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		s.ctrl.Disconnect()
		s.logger.Close()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", len(s.clients))

	// Send initial buffer + connection state
	initial := Frame{
		Buffer:     bufferState(s.ctrl.Buffer()),
		Connection: &ConnectionState{Connected: s.ctrl.Connected()},
		Stamp:      time.Now().UnixMilli(),
	}
	if data, err := json.Marshal(initial); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (handle incoming messages / keep-alive)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", len(s.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		writeOK(w)

	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bufferState(s.ctrl.Buffer()))
}

func (s *Server) handleBufferStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Index int `json:"index"`
		X     int `json:"x"`
		Y     int `json:"y"`
		Flags int `json:"flags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	if err := s.ctrl.SetStep(req.Index, req.X, req.Y, req.Flags); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	writeOK(w)
}

func (s *Server) handleBufferSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Steps []galvo.StepValues `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	if err := s.ctrl.LoadSteps(req.Steps); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	writeOK(w)
}

func (s *Server) handleBufferClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.ctrl.ClearBuffer()
	writeOK(w)
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	ports, err := device.ListPorts()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"ports": ports})
}

// ConnectDevice opens a connection per the config (optionally overridden by
// port/baud) and hands it to the controller.
func (s *Server) ConnectDevice(portPath string, baudRate int) error {
	if s.ctrl.Connected() {
		return fmt.Errorf("server: already connected")
	}

	if portPath == "" {
		portPath = s.cfg.Device.PortPath
	}
	if baudRate == 0 {
		baudRate = s.cfg.Device.BaudRate
	}

	var conn device.Conn
	switch s.cfg.Device.Type {
	case "serial":
		conn = device.NewSerialConn(
			device.SerialConfig{PortPath: portPath, BaudRate: baudRate},
			s.ctrl.HandleLine,
			s.ctrl.ConnectionLost,
		)
	default:
		conn = device.NewDemoConn(s.ctrl.HandleLine)
	}

	if err := conn.Open(); err != nil {
		return err
	}
	s.ctrl.Use(conn)
	return nil
}

func (s *Server) handleDeviceConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Port string `json:"port"`
		Baud int    `json:"baud"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if err := s.ConnectDevice(req.Port, req.Baud); err != nil {
		http.Error(w, err.Error(), 502)
		return
	}
	writeOK(w)
}

func (s *Server) handleDeviceDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.ctrl.Disconnect()
	writeOK(w)
}

// targetFrom resolves the request's buffer selector, falling back to the
// configured default.
func (s *Server) targetFrom(r *http.Request) string {
	var req struct {
		Target string `json:"target"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Target != "" {
		return req.Target
	}
	return s.cfg.Transfer.DefaultTarget
}

func (s *Server) handleDeviceWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.ctrl.Write(s.targetFrom(r)); err != nil {
		http.Error(w, err.Error(), 502)
		return
	}
	writeOK(w)
}

func (s *Server) handleDeviceLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.ctrl.Load(s.targetFrom(r)); err != nil {
		http.Error(w, err.Error(), 502)
		return
	}
	writeOK(w)
}

func (s *Server) handleDeviceSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.ctrl.Swap(); err != nil {
		http.Error(w, err.Error(), 502)
		return
	}
	writeOK(w)
}

func (s *Server) handleDeviceClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.ctrl.ClearDevice(s.targetFrom(r)); err != nil {
		http.Error(w, err.Error(), 502)
		return
	}
	writeOK(w)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		http.Error(w, "empty command", 400)
		return
	}
	if err := s.ctrl.SendCommand(cmd); err != nil {
		http.Error(w, err.Error(), 502)
		return
	}
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) broadcast(frame Frame) {
	frame.Stamp = time.Now().UnixMilli()
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
