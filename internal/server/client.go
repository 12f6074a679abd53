package server

import (
	"context"

	"github.com/racerl/racecore/pkg/core"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote racecore.Environment.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target. Extra options are appended to the
// defaults: plaintext transport and the JSON codec.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Reset starts a new episode.
func (c *Client) Reset(ctx context.Context) (*core.StepResult, error) {
	out := new(core.StepResult)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Reset", &ResetRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Step runs one tick.
func (c *Client) Step(ctx context.Context, req *StepRequest) (*core.StepResult, error) {
	out := new(core.StepResult)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Step", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PushEvent queues a world event on the server.
func (c *Client) PushEvent(ctx context.Context, ev core.WorldEvent) (bool, error) {
	out := new(PushEventReply)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/PushEvent", &ev, out); err != nil {
		return false, err
	}
	return out.Accepted, nil
}
