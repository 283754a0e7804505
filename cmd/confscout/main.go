package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/confscout/config"
	srv "github.com/mohammad-safakhou/confscout/internal/server"
)

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	root := &cobra.Command{Use: "confscout"}
	root.AddCommand(serveCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}
