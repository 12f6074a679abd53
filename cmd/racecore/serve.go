package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/racerl/racecore/internal/config"
	"github.com/racerl/racecore/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCommand() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the environment over gRPC for an external trainer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(tag)
			if err != nil {
				return err
			}
			defer s.close(context.Background())

			return server.New(s.env, s.logger).Serve(ctx, config.GetServerConfig().Address)
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "label stored with the recording")
	cmd.Flags().String("address", "", "listen address (overrides grpc.address)")
	_ = viper.BindPFlag("grpc.address", cmd.Flags().Lookup("address"))
	return cmd
}
