package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"blackbox/internal/daemon"
	"blackbox/internal/events"
	"blackbox/internal/logging"
)

const defaultListLimit = 20

// Server answers JSON-RPC calls from the blackbox CLI on a Unix socket.
type Server struct {
	path     string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server

	closing atomic.Bool
	conns   sync.WaitGroup
}

// NewServer binds the socket at path, replacing a stale one, and registers
// the daemon methods under the "Blackbox" service name. ctx bounds the
// daemon run started through the Start method.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Blackbox", &service{daemon: d, logger: logger, ctx: ctx}); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	return &Server{path: path, logger: logger, listener: listener, rpc: rpcServer}, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.conns.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.conns.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.WarnWithContext(s.logger, "ipc accept failed", "ipc_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "cli commands may fail to reach the daemon"),
			)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
		}()
	}
}

// Close stops accepting, waits for open calls and removes the socket file.
func (s *Server) Close() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}
	_ = s.listener.Close()
	s.conns.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove ipc socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file by hand before the next start"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Blackbox = status.Blackbox
	resp.Ledger = status.Ledger
	resp.EventsDir = status.EventsDir
	resp.LedgerPath = status.LedgerPath
	resp.LockPath = status.LockFilePath
	resp.LogPath = status.LogPath
	resp.Netlink = status.Netlink
	return nil
}

func (s *service) Audit(_ AuditRequest, resp *AuditResponse) error {
	s.logger.Debug("storage audit requested")
	result, err := s.daemon.Audit(s.ctx)
	if err != nil {
		return err
	}
	resp.Result = result
	for _, auditErr := range result.Errors {
		resp.Errors = append(resp.Errors, auditErr.Error())
	}
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	list, err := s.daemon.Events(s.ctx, req.CameraID, limit)
	if err != nil {
		return err
	}
	resp.Events = list
	return nil
}

func (s *service) Jobs(req JobsRequest, resp *JobsResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	states := make([]events.JobState, 0, len(req.States))
	for _, state := range req.States {
		trimmed := strings.TrimSpace(state)
		if trimmed == "" {
			continue
		}
		states = append(states, events.JobState(strings.ToLower(trimmed)))
	}
	list, err := s.daemon.Jobs(s.ctx, limit, states...)
	if err != nil {
		return err
	}
	resp.Jobs = list
	return nil
}

func (s *service) MarkImportant(req MarkImportantRequest, resp *MarkImportantResponse) error {
	if strings.TrimSpace(req.Path) == "" {
		return errors.New("clip path is required")
	}
	if err := s.daemon.MarkImportant(s.ctx, req.Path, req.Important); err != nil {
		return err
	}
	resp.Updated = true
	return nil
}

func (s *service) Kick(req KickRequest, resp *KickResponse) error {
	resp.Kicked = s.daemon.Kick(req.CameraID)
	return nil
}
