// Package ws exposes the chat service to a local UI over a websocket.
package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"peerchat/auth"
	"peerchat/contract"
	"peerchat/domain/event"
	"peerchat/errors"
	"peerchat/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	Path = "/ipc"

	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketMaxMessageSize     = 64 * 1024
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	// defaultPongWait - defaultPingInterval is how long the client has to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second

	defaultConnectionBuffer = 64
	defaultCommandTimeout   = 30 * time.Second
)

type (
	// Dispatcher runs one UI command.
	Dispatcher interface {
		Dispatch(ctx context.Context, command string, args json.RawMessage) (any, error)
	}

	// Registrar is where each connection subscribes to push notifications.
	Registrar interface {
		Add(name string, sink contract.EventSink)
		Remove(name string)
	}

	Config struct {
		Log        *slog.Logger
		Dispatcher Dispatcher
		Registrar  Registrar
		ListenAddr string
		// TokenSecret enables bearer token checks when not empty.
		TokenSecret []byte
		// PingInterval and PongWait default to 5s and 7s.
		PingInterval time.Duration
		PongWait     time.Duration
		// CommandTimeout bounds each command, 30s by default.
		CommandTimeout time.Duration
	}

	Server struct {
		log            *slog.Logger
		dispatcher     Dispatcher
		registrar      Registrar
		tokenSecret    []byte
		pingInterval   time.Duration
		pongWait       time.Duration
		commandTimeout time.Duration
		ws             *websocket.Upgrader
		*http.Server
	}

	// Request is a command sent by the UI.
	Request struct {
		ID      string          `json:"id"`
		Command string          `json:"command"`
		Args    json.RawMessage `json:"args,omitempty"`
	}

	// Response answers the Request with the same ID.
	Response struct {
		ID     string `json:"id"`
		OK     bool   `json:"ok"`
		Result any    `json:"result,omitempty"`
		Error  string `json:"error,omitempty"`
	}

	// Push carries a room notification.
	Push struct {
		Event json.RawMessage `json:"event"`
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		log:            cfg.Log.With("component", "ipc-server"),
		dispatcher:     cfg.Dispatcher,
		registrar:      cfg.Registrar,
		tokenSecret:    cfg.TokenSecret,
		pingInterval:   cfg.PingInterval,
		pongWait:       cfg.PongWait,
		commandTimeout: cfg.CommandTimeout,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
	if srv.commandTimeout <= 0 {
		srv.commandTimeout = defaultCommandTimeout
	}
	if srv.pingInterval <= 0 {
		srv.pingInterval = defaultPingInterval
	}
	if srv.pongWait <= srv.pingInterval {
		srv.pongWait = srv.pingInterval + defaultPongWait - defaultPingInterval
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, srv.ipc)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

// Run serves until ctx is canceled, then shuts the listener down.
func (srv *Server) Run(ctx context.Context) error {
	errSrv := make(chan error, 1)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()
	srv.log.Info("IPC server started", "addr", srv.Addr)

	select {
	case err := <-errSrv:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.log.Error("IPC server shutdown failed", "error", err)
			return err
		}
		srv.log.Info("IPC server stopped")
		return nil
	}
}

func (srv *Server) authorize(r *http.Request) error {
	if len(srv.tokenSecret) == 0 {
		return nil
	}
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return errors.ErrUnauthorized
	}
	if _, err := auth.ValidateToken(srv.tokenSecret, token); err != nil {
		return stderrors.Join(errors.ErrUnauthorized, err)
	}
	return nil
}

func (srv *Server) ipc(w http.ResponseWriter, r *http.Request) {
	if err := srv.authorize(r); err != nil {
		srv.log.Warn("Rejected IPC connection", "remote", r.RemoteAddr, "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		srv.log.Error("Websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	log := srv.log.With("conn", connID)
	ctx, cancel := context.WithCancel(context.Background())
	events := sink.NewConnectionSink(defaultConnectionBuffer, ctx.Done())
	sinkName := "ipc-" + connID
	srv.registrar.Add(sinkName, events)
	log.Debug("IPC connection opened", "remote", r.RemoteAddr)

	go srv.handleConn(ctx, cancel, conn, sinkName, events, log)
}

func (srv *Server) handleConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	sinkName string,
	events *sink.ConnectionSink,
	log *slog.Logger,
) {
	wg := &sync.WaitGroup{}
	requests := make(chan Request)
	responses := make(chan Response)

	wg.Add(3)
	go func() {
		srv.receiver(ctx, wg, conn, requests, log)
		cancel()
	}()
	go func() {
		srv.dispatch(ctx, wg, requests, responses, log)
		cancel()
	}()
	go func() {
		srv.sender(ctx, wg, conn, responses, events.Events, log)
		cancel()
	}()

	// Closing the socket unblocks the receiver
	<-ctx.Done()
	webSocketCloser(conn, log)
	wg.Wait()
	srv.registrar.Remove(sinkName)
	log.Debug("IPC connection closed")
}

// dispatch runs commands one at a time, in arrival order.
func (srv *Server) dispatch(ctx context.Context, wg *sync.WaitGroup, requests <-chan Request, responses chan<- Response, log *slog.Logger) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-requests:
			result, err := srv.run(ctx, req)
			resp := Response{ID: req.ID, OK: err == nil, Result: result}
			if err != nil {
				log.Debug("Command failed", "command", req.Command, "error", err)
				resp.Result = nil
				resp.Error = err.Error()
			}
			select {
			case responses <- resp:
			case <-ctx.Done():
				return
			}
		}
	}
}

// run executes req on a context detached from the connection: a UI that
// disconnects mid command never leaves the session halfway through a room
// switch. Only the command timeout bounds it.
func (srv *Server) run(ctx context.Context, req Request) (any, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), srv.commandTimeout)
	defer cancel()
	return srv.dispatcher.Dispatch(ctx, req.Command, req.Args)
}

func (srv *Server) sender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	responses <-chan Response,
	events <-chan event.ChatEvent,
	log *slog.Logger,
) {
	pingTicker := time.NewTicker(srv.pingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
	for {
		var payload any
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline)); err != nil {
				log.Error("Failed to set websocket write deadline", "error", err)
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				log.Error("Failed to send ping", "error", err)
				return
			}
			continue
		case resp := <-responses:
			payload = resp
		case evt := <-events:
			body, err := event.Encode(evt)
			if err != nil {
				log.Error("Failed to encode event", "type", evt.Type(), "error", err)
				continue
			}
			payload = Push{Event: body}
		}

		if err := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline)); err != nil {
			log.Error("Failed to set websocket write deadline", "error", err)
			return
		}
		if err := conn.WriteJSON(payload); err != nil {
			log.Error("Failed to write outgoing message", "error", err)
			return
		}
	}
}

func (srv *Server) receiver(ctx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, requests chan<- Request, log *slog.Logger) {
	defer wg.Done()

	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(srv.pongWait))
	})
	if err := conn.SetReadDeadline(time.Now().Add(srv.pongWait)); err != nil {
		log.Error("Failed to set websocket read deadline", "error", err)
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Connection closed by client")
			} else if ctx.Err() == nil {
				log.Warn("Unexpected error during receive", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil || req.Command == "" {
			log.Warn("Ignoring malformed request", "size", len(msg))
			continue
		}
		select {
		case requests <- req:
		case <-ctx.Done():
			return
		}
	}
}

func webSocketCloser(conn *websocket.Conn, log *slog.Logger) {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if err != nil && !stderrors.Is(err, websocket.ErrCloseSent) {
		log.Debug("Failed to send close frame", "error", err)
	}
	if err := conn.Close(); err != nil {
		log.Debug("Failed to close websocket connection", "error", err)
	}
}
