package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"creepair.dev/internal/mend"
	"creepair.dev/internal/protocol"
	"creepair.dev/internal/sim/world"
)

// State is what the console reports for the state command, the watch stream
// and GET /admin/v1/state.
type State struct {
	WorldID string      `json:"world_id"`
	World   world.Stats `json:"world"`
	Mend    mend.Stats  `json:"mend"`
}

type Config struct {
	World *world.World
	Mend  *mend.Coordinator
	// Save writes a world snapshot and returns its path. Optional.
	Save   func(ctx context.Context) (string, error)
	Logger *log.Logger

	// AllowRemote lets non-loopback clients use the console.
	AllowRemote bool
	// CommandTimeout bounds how long a command waits for the world loop.
	CommandTimeout time.Duration
}

type Server struct {
	world *world.World
	mend  *mend.Coordinator
	save  func(ctx context.Context) (string, error)
	log   *log.Logger

	allowRemote bool
	timeout     time.Duration

	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		world:       cfg.World,
		mend:        cfg.Mend,
		save:        cfg.Save,
		log:         logger,
		allowRemote: cfg.AllowRemote,
		timeout:     timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback guard below
		},
	}
}

// Routes registers the console endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/console", s.Handler())
	mux.HandleFunc("/v1/watch", s.WatchHandler())
	mux.HandleFunc("/admin/v1/state", s.StateHandler())
	mux.HandleFunc("/admin/v1/chunk", s.ChunkHandler())
	mux.HandleFunc("/metrics", s.MetricsHandler())
}

func (s *Server) permitted(r *http.Request) bool {
	return s.allowRemote || isLoopbackRemote(r.RemoteAddr)
}

// Handler serves the command socket: every CMD message gets one RESULT.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.permitted(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.log.Printf("console: %s connected", r.RemoteAddr)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res := s.handle(r.Context(), msg)
			b, err := json.Marshal(res)
			if err != nil {
				s.log.Printf("console: marshal result: %v", err)
				break
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				break
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		s.log.Printf("console: %s disconnected", r.RemoteAddr)
	}
}

func (s *Server) handle(ctx context.Context, msg []byte) protocol.ResultMsg {
	cmd, perr := protocol.DecodeCmd(msg)
	if perr != nil {
		s.log.Printf("console: rejected %s: %s", perr.Code, perr.Message)
		return protocol.Fail(cmd.ReqID, perr.Code, perr.Message)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	message, err := s.Execute(ctx, cmd)
	if err != nil {
		code := protocol.ErrInternal
		var pe *protocol.Error
		switch {
		case errors.As(err, &pe):
			code = pe.Code
		case errors.Is(err, context.DeadlineExceeded):
			code = protocol.ErrWorldBusy
		}
		s.log.Printf("console: %s failed: %v", cmd.Cmd, err)
		return protocol.Fail(cmd.ReqID, code, err.Error())
	}
	st, err := s.State(ctx)
	if err != nil {
		return protocol.Fail(cmd.ReqID, protocol.ErrWorldBusy, err.Error())
	}
	return protocol.OK(cmd.ReqID, message, st)
}

// Execute runs a decoded command. Changes to the world or the coordinator
// happen on the world goroutine.
func (s *Server) Execute(ctx context.Context, cmd protocol.CmdMsg) (string, error) {
	value := 0
	if cmd.Value != nil {
		value = *cmd.Value
	}
	switch cmd.Cmd {
	case protocol.CmdPeriod:
		if value <= 0 {
			return "", protocol.Errorf(protocol.ErrBadRequest, "period must be positive")
		}
		err := s.world.Do(ctx, func() { s.mend.Reconfigure(value, s.mend.Stats().MaxPerTick) })
		if err != nil {
			return "", err
		}
		s.log.Printf("console: restore period set to %d ticks", value)
		return fmt.Sprintf("restoring every %d ticks", value), nil

	case protocol.CmdProcess:
		if value <= 0 {
			return "", protocol.Errorf(protocol.ErrBadRequest, "blocks per tick must be positive")
		}
		if err := s.world.Do(ctx, func() { s.mend.SetMaxPerTick(value) }); err != nil {
			return "", err
		}
		s.log.Printf("console: restore batch set to %d blocks", value)
		return fmt.Sprintf("restoring %d blocks per record per run", value), nil

	case protocol.CmdTest:
		var c *world.Creeper
		if err := s.world.Do(ctx, func() { c = s.world.SpawnTestCreeper() }); err != nil {
			return "", err
		}
		return fmt.Sprintf("creeper %s ignited at %s", c.ID, c.Pos), nil

	case protocol.CmdState:
		return "", nil

	case protocol.CmdDrain:
		n := 0
		if err := s.world.Do(ctx, func() { n = s.mend.Drain() }); err != nil {
			return "", err
		}
		return fmt.Sprintf("restored %d pending blocks", n), nil

	case protocol.CmdSave:
		if s.save == nil {
			return "", protocol.Errorf(protocol.ErrInternal, "saving is not configured")
		}
		path, err := s.save(ctx)
		if err != nil {
			return "", err
		}
		return "saved " + path, nil
	}
	return "", protocol.Errorf(protocol.ErrUnknownCommand, "unknown command %q", cmd.Cmd)
}

// State reads world and mend statistics on the world goroutine.
func (s *Server) State(ctx context.Context) (State, error) {
	st := State{WorldID: s.world.ID()}
	err := s.world.Do(ctx, func() {
		st.World = s.world.Stats()
		st.Mend = s.mend.Stats()
	})
	return st, err
}

func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.permitted(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		st, err := s.State(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(st)
	}
}

// ChunkHandler serves GET /admin/v1/chunk?cx=&cz= as a world.ChunkView.
func (s *Server) ChunkHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.permitted(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		cx, errX := strconv.Atoi(q.Get("cx"))
		cz, errZ := strconv.Atoi(q.Get("cz"))
		if errX != nil || errZ != nil {
			http.Error(rw, "cx and cz must be integers", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		var (
			cv world.ChunkView
			ok bool
		)
		if err := s.world.Do(ctx, func() { cv, ok = s.world.ChunkView(cx, cz) }); err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if !ok {
			http.Error(rw, "chunk not loaded", http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(cv)
	}
}

// WatchHandler streams State as JSON every interval_ms (default 1000) until
// the client disconnects.
func (s *Server) WatchHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.permitted(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		interval := time.Second
		if v, err := strconv.Atoi(r.URL.Query().Get("interval_ms")); err == nil {
			interval = time.Duration(v) * time.Millisecond
		}
		if interval < 50*time.Millisecond {
			interval = 50 * time.Millisecond
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Reader goroutine: only notices the client going away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			qctx, qcancel := context.WithTimeout(ctx, s.timeout)
			st, err := s.State(qctx)
			qcancel()
			if err != nil {
				return
			}
			b, _ := json.Marshal(st)
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
