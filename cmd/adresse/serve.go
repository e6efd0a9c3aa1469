package main

import (
	"github.com/spf13/cobra"

	"adresse/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction API over HTTP",
	Long: `Serve POST /v1/extract, POST /v1/extract/batch, GET /healthz and GET /metrics.

Examples:
  adresse serve
  adresse serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	addr := a.Config.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(a.Service, server.Options{
		Health:   a.Health,
		Gatherer: a.Registry,
		Logger:   a.Logger.Named("http"),
	})
	return srv.Run(cmd.Context(), addr)
}
