package webserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stake-plus/govproposals/src/actions/core"
	"github.com/stake-plus/govproposals/src/dispatch"
	"github.com/stake-plus/govproposals/src/proposals"
)

// Transport labels HTTP traffic in logs and metrics.
const Transport = "http"

var _ core.Module = (*Server)(nil)

// Submitter is implemented by *dispatch.Dispatcher.
type Submitter interface {
	Submit(item dispatch.Inbound) error
}

// Reader is the read side of *proposals.Store.
type Reader interface {
	ListProposals(ctx context.Context) ([]proposals.Proposal, error)
	Get(ctx context.Context, id int64) (proposals.Proposal, error)
}

// Check is one named dependency probe for /healthz.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Config struct {
	Addr         string
	AllowOrigins []string
	ReplyTimeout time.Duration
}

type Deps struct {
	Submitter Submitter
	Reader    Reader
	Gatherer  prometheus.Gatherer
	Checks    []Check
}

// New builds the gin engine with every route attached.
func New(cfg Config, deps Deps) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, deps)
	return g
}

// Server runs the HTTP transport as a lifecycle module.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

func NewServer(cfg Config, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           New(cfg, deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Name implements core.Module.
func (s *Server) Name() string { return "webserver" }

// Start binds the listener synchronously so a bad address fails startup.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("webserver: listen %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	log.Printf("webserver: listening on %s", ln.Addr())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("webserver: serve: %v", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("webserver: shutdown: %v", err)
	}
}

// Addr reports the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}
