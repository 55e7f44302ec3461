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
	"sync"

	"stagehand/internal/api"
	"stagehand/internal/daemon"
	"stagehand/internal/logging"
)

// ServiceName is the RPC service name registered by the server.
const ServiceName = "Stagehand"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) BundleList(_ BundleListRequest, resp *BundleListResponse) error {
	resp.Bundles = api.FromBundles(s.daemon.Bundles())
	return nil
}

func (s *service) BundleRefresh(req BundleRefreshRequest, resp *BundleRefreshResponse) error {
	s.logger.Debug("bundle refresh requested", logging.String(logging.FieldBundle, req.Name))
	change, err := s.daemon.RefreshBundle(req.Name)
	if err != nil {
		return err
	}
	resp.Name = req.Name
	resp.Change = change
	s.logger.Info("bundle refreshed via IPC",
		logging.String(logging.FieldEventType, "bundle_refresh"),
		logging.String(logging.FieldBundle, req.Name),
		logging.String("change", change))
	return nil
}

func (s *service) AssetList(req AssetListRequest, resp *AssetListResponse) error {
	list, err := s.daemon.Assets(req.Namespace, req.Category)
	if err != nil {
		return err
	}
	*resp = list
	return nil
}

func (s *service) GraphicInstances(_ GraphicInstancesRequest, resp *GraphicInstancesResponse) error {
	resp.Instances = api.FromInstances(s.daemon.GraphicInstances())
	return nil
}

func (s *service) GraphicRefresh(req GraphicRefreshRequest, resp *GraphicRefreshResponse) error {
	if err := s.daemon.RefreshGraphic(req.Target, req.All); err != nil {
		return err
	}
	resp.Sent = true
	s.logger.Info("graphic refresh sent via IPC",
		logging.String(logging.FieldEventType, "graphic_refresh"),
		logging.String("target", req.Target),
		logging.Bool("all", req.All))
	return nil
}

func (s *service) GraphicKill(req GraphicKillRequest, resp *GraphicKillResponse) error {
	if err := s.daemon.KillGraphic(req.SocketID); err != nil {
		return err
	}
	resp.Sent = true
	s.logger.Info("graphic kill sent via IPC",
		logging.String(logging.FieldEventType, "graphic_kill"),
		logging.String(logging.FieldSocketID, req.SocketID))
	return nil
}

func (s *service) SoundCueList(req SoundCueListRequest, resp *SoundCueListResponse) error {
	list, err := s.daemon.SoundCues(req.Namespace)
	if err != nil {
		return err
	}
	*resp = list
	return nil
}

func (s *service) SoundCueUpdate(req SoundCueUpdateRequest, resp *SoundCueUpdateResponse) error {
	cue, err := s.daemon.UpdateSoundCue(req.Namespace, req.Name, api.SoundCueUpdate{File: req.File, Volume: req.Volume})
	if err != nil {
		return err
	}
	*resp = cue
	s.logger.Info("sound cue updated via IPC",
		logging.String(logging.FieldEventType, "sound_cue_update"),
		logging.String(logging.FieldNamespace, req.Namespace),
		logging.String("cue", req.Name))
	return nil
}
