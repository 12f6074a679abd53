package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/racerl/racecore/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCommand() *cobra.Command {
	var (
		input string
		tag   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes headless with the configured policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := parseInput(input)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(tag)
			if err != nil {
				return err
			}
			defer s.close(context.Background())

			return s.runEpisodes(ctx, viper.GetInt("episode.maxEpisodes"), in)
		},
	}
	cmd.Flags().StringVar(&input, "input", "forward", "scripted controls held every tick: forward,reverse,left,right")
	cmd.Flags().StringVar(&tag, "tag", "", "label stored with the recording")
	cmd.Flags().Int("episodes", 1, "number of episodes to run")
	cmd.Flags().Uint64("max-ticks", 0, "end an episode after this many ticks (0 = unbounded)")
	_ = viper.BindPFlag("episode.maxEpisodes", cmd.Flags().Lookup("episodes"))
	_ = viper.BindPFlag("episode.maxTicks", cmd.Flags().Lookup("max-ticks"))
	return cmd
}

// runEpisodes plays episodes back to back until the count is reached or ctx
// is cancelled. Close records an interrupted episode with the interrupted reason.
func (s *session) runEpisodes(ctx context.Context, episodes int, input core.InputState) error {
	for i := 0; i < episodes; i++ {
		first, err := s.env.Reset()
		if err != nil {
			return err
		}
		s.logger.Info("Running episode", "episode", first.EpisodeID, "number", i+1, "of", episodes)

		res := first
		for !res.Done {
			if ctx.Err() != nil {
				s.logger.Info("Interrupted", "episode", res.EpisodeID, "tick", res.Tick)
				return nil
			}
			res, err = s.env.Step(input, 0)
			if err != nil {
				return err
			}
		}

		rec := s.env.Record()
		s.logger.Info("Episode finished",
			"episode", rec.ID,
			"reason", string(rec.Reason),
			"ticks", rec.Ticks,
			"reward", rec.CumulativeReward,
			"checkpoints", fmt.Sprintf("%d/%d", rec.CheckpointsPassed, rec.CheckpointsTotal),
		)
	}
	return nil
}

// parseInput turns a comma separated list of held controls into an InputState.
func parseInput(spec string) (core.InputState, error) {
	var in core.InputState
	for _, part := range strings.Split(spec, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "forward":
			in.Forward = true
		case "reverse":
			in.Reverse = true
		case "left":
			in.Left = true
		case "right":
			in.Right = true
		default:
			return in, fmt.Errorf("unknown control %q", part)
		}
	}
	return in, nil
}
