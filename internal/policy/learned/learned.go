// Package learned runs a trained network as a driving policy.
package learned

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/openfluke/loom/nn"
	"github.com/racerl/racecore/pkg/core"
)

// ErrNoNetwork is returned when a policy is built without a network.
var ErrNoNetwork = errors.New("learned policy: no network")

// Policy feeds the observation vector through a loom network and reads
// throttle and steer from the first two outputs.
type Policy struct {
	net    *nn.Network
	logger *slog.Logger
}

// Load reads a saved model from path.
func Load(path, modelID string, logger *slog.Logger) (*Policy, error) {
	net, err := nn.LoadModel(path, modelID)
	if err != nil {
		return nil, fmt.Errorf("load model %s from %s: %w", modelID, path, err)
	}
	return New(net, logger)
}

// New wraps an already built network.
func New(net *nn.Network, logger *slog.Logger) (*Policy, error) {
	if net == nil {
		return nil, ErrNoNetwork
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{net: net, logger: logger}, nil
}

// Act runs one forward pass. A missing observation or a network that
// yields fewer than two outputs results in the neutral action.
func (p *Policy) Act(obs core.Observation, _ core.InputState) core.Action {
	if len(obs) == 0 {
		return core.Action{}
	}

	out, _ := p.net.ForwardCPU(obs.Float32())
	if len(out) < 2 {
		p.logger.Error("Policy network produced too few outputs", "outputs", len(out))
		return core.Action{}
	}

	a := core.Action{Throttle: float64(out[0]), Steer: float64(out[1])}
	return a.Clamp()
}
