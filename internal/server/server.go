// Package server exposes an environment to remote trainers over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/racerl/racecore/internal/env"
	"github.com/racerl/racecore/pkg/core"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Environment is what the service drives. *env.Environment implements it.
type Environment interface {
	Reset() (core.StepResult, error)
	Step(input core.InputState, dt float64) (core.StepResult, error)
	StepAction(action core.Action, dt float64) (core.StepResult, error)
	Enqueue(ev core.WorldEvent) bool
}

// Server implements EnvironmentServer on top of an Environment.
type Server struct {
	env    Environment
	logger *slog.Logger
}

// New returns a service for e. A nil logger uses slog.Default.
func New(e Environment, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{env: e, logger: logger}
}

// Reset starts a new episode.
func (s *Server) Reset(_ context.Context, _ *ResetRequest) (*core.StepResult, error) {
	res, err := s.env.Reset()
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug("Environment reset", "episode", res.EpisodeID)
	return &res, nil
}

// Step runs one tick.
func (s *Server) Step(_ context.Context, req *StepRequest) (*core.StepResult, error) {
	var (
		res core.StepResult
		err error
	)
	if req.Action != nil {
		res, err = s.env.StepAction(*req.Action, req.DeltaTime)
	} else {
		res, err = s.env.Step(req.Input, req.DeltaTime)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &res, nil
}

// PushEvent queues a world event for the next tick.
func (s *Server) PushEvent(_ context.Context, ev *core.WorldEvent) (*PushEventReply, error) {
	if !ev.Kind.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown event kind %q", ev.Kind)
	}
	return &PushEventReply{Accepted: s.env.Enqueue(*ev)}, nil
}

// Serve listens on addr and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx is cancelled, then stops gracefully.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logCalls))
	RegisterEnvironmentServer(gs, s)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gs.Serve(lis)
	}()
	s.logger.Info("Environment service listening", "address", lis.Addr().String())

	select {
	case <-ctx.Done():
		gs.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("RPC failed", "method", info.FullMethod, "error", err, "duration", time.Since(start))
	}
	return resp, err
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, env.ErrNotStarted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, env.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
