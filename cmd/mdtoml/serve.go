package main

import (
	"context"
	"log/slog"

	"mdtoml/internal/gateway"
	"mdtoml/internal/pipeline"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tools and the pipeline over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if serveAddr != "" {
				a.cfg.Gateway.Addr = serveAddr
			}
			engine, err := pipeline.ParseEngine(a.cfg.Pipeline.Engine)
			if err != nil {
				return err
			}

			srv := gateway.NewServer(a.dispatcher.Registry(), gateway.Options{
				Store:      a.store,
				Engine:     engine,
				MaxRepairs: a.cfg.Pipeline.MaxRepairs,
			})
			slog.Info("starting gateway", "addr", a.cfg.Gateway.Addr, "audit", a.store != nil)
			return srv.ListenAndServe(ctx, a.cfg.Gateway.Addr)
		})
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "override gateway listen address")
}
