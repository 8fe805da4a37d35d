package raft

import (
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/Jille/raft-grpc-leader-rpc/leaderhealth"
	transport "github.com/Jille/raft-grpc-transport"
	hraft "github.com/hashicorp/raft"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Blackdeer1524/pgcatalog/src"
)

const (
	healthServiceName   = "pgcatalog"
	defaultApplyTimeout = 5 * time.Second
)

type Node struct {
	id   string
	addr string
	raft *hraft.Raft
	grpc *grpc.Server

	applyTimeout time.Duration
	logger       src.Logger
}

func newRaft(
	cfg *hraft.Config,
	store Store,
	logger src.Logger,
	tr hraft.Transport,
	peers []hraft.Server,
) (*hraft.Raft, error) {
	f := &fsm{
		nodeID: string(cfg.LocalID),
		store:  store,
		log:    logger,
	}

	logStore := hraft.NewInmemStore()
	stableStore := hraft.NewInmemStore()
	snapStore := hraft.NewInmemSnapshotStore()

	r, err := hraft.NewRaft(cfg, f, logStore, stableStore, snapStore, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft node: %w", err)
	}

	if len(peers) > 0 {
		err = r.BootstrapCluster(hraft.Configuration{Servers: peers}).Error()
		if err != nil && !errors.Is(err, hraft.ErrCantBootstrap) {
			return nil, fmt.Errorf("failed to bootstrap cluster: %w", err)
		}
	}

	return r, nil
}

// StartNode starts a raft member serving the raft transport and the
// leader health service over gRPC on addr. peers is only used to
// bootstrap a new cluster.
func StartNode(id, addr string, store Store, logger src.Logger, peers []hraft.Server) (*Node, error) {
	cfg := hraft.DefaultConfig()
	cfg.LocalID = hraft.ServerID(id)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	tr := transport.New(hraft.ServerAddress(addr), []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	})

	r, err := newRaft(cfg, store, logger, tr.Transport(), peers)
	if err != nil {
		return nil, errors.Join(err, lis.Close())
	}

	s := grpc.NewServer()
	tr.Register(s)
	leaderhealth.Setup(r, s, []string{healthServiceName})

	n := &Node{
		id:           id,
		addr:         addr,
		raft:         r,
		grpc:         s,
		applyTimeout: defaultApplyTimeout,
		logger:       logger,
	}

	go func() {
		err := s.Serve(lis)
		if err != nil {
			n.logger.Errorw("raft node failed to serve", zap.Error(err))
		}
	}()

	logger.Infow("raft node started", zap.String("node_id", id), zap.String("address", addr))

	return n, nil
}

// SingleNodePeers returns the bootstrap configuration of a one-member cluster.
func SingleNodePeers(id, addr string) []hraft.Server {
	return []hraft.Server{{
		Suffrage: hraft.Voter,
		ID:       hraft.ServerID(id),
		Address:  hraft.ServerAddress(addr),
	}}
}

func (n *Node) IsLeader() bool {
	return n.raft.State() == hraft.Leader
}

func (n *Node) LeaderAddr() string {
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

// IsNotLeader reports whether err means the command must be sent to
// another member.
func IsNotLeader(err error) bool {
	return errors.Is(err, hraft.ErrNotLeader) ||
		errors.Is(err, hraft.ErrLeadershipLost) ||
		errors.Is(err, hraft.ErrLeadershipTransferInProgress)
}

func (n *Node) Close() {
	if err := n.raft.Shutdown().Error(); err != nil {
		n.logger.Errorw("raft node failed to close raft", zap.Error(err))
	}

	if n.grpc != nil {
		n.grpc.GracefulStop()
	}

	n.logger.Infow("raft node gracefully stopped", zap.String("node_id", n.id), zap.String("address", n.addr))
}
