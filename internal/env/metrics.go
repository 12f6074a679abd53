package env

import (
	"context"
	"fmt"

	"github.com/racerl/racecore/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/racerl/racecore/internal/env"

// metrics uses the global meter, which is a no-op until an otel provider
// is installed.
type metrics struct {
	ticks         metric.Int64Counter
	episodesStart metric.Int64Counter
	episodesEnd   metric.Int64Counter
	reward        metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)

	out.ticks, err = m.Int64Counter("env.ticks",
		metric.WithDescription("Simulation ticks run inside an episode"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	out.episodesStart, err = m.Int64Counter("env.episodes.started",
		metric.WithDescription("Episodes started"))
	if err != nil {
		return nil, fmt.Errorf("creating episodes started counter: %w", err)
	}
	out.episodesEnd, err = m.Int64Counter("env.episodes.terminated",
		metric.WithDescription("Episodes terminated, by reason"))
	if err != nil {
		return nil, fmt.Errorf("creating episodes terminated counter: %w", err)
	}
	out.reward, err = m.Float64Histogram("env.reward",
		metric.WithDescription("Cumulative reward of finished episodes"))
	if err != nil {
		return nil, fmt.Errorf("creating reward histogram: %w", err)
	}
	return &out, nil
}

func (m *metrics) tick() {
	m.ticks.Add(context.Background(), 1)
}

func (m *metrics) started() {
	m.episodesStart.Add(context.Background(), 1)
}

func (m *metrics) terminated(r *core.EpisodeRecord) {
	attrs := metric.WithAttributes(attribute.String("reason", string(r.Reason)))
	m.episodesEnd.Add(context.Background(), 1, attrs)
	m.reward.Record(context.Background(), r.CumulativeReward, attrs)
}
