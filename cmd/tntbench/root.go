// Package tntbench is the out-of-scope command-line test driver spec
// section 1 places at the interface level only: a small cobra CLI that
// dials a real (or embedded) IPROTO server and drives ping/bench
// workloads through the connector, for smoke-testing a deployment by
// hand.
//
// Styled after _examples/ValentinKolb-dKV/cmd/root.go's cobra layout
// (a package-level RootCmd plus an Execute entry point) and
// _examples/luma-pharos/internal/env/config.go's godotenv-then-env-vars
// loading order, swapping go-envconfig for viper (pulled from the
// dKV stack) since viper is what the rest of that repo's subcommands
// bind their flags through.
package tntbench

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nimbledb/tnt-go/connector"
	"github.com/nimbledb/tnt-go/internal/logging"
)

const Version = "0.1.0"

var RootCmd = &cobra.Command{
	Use:     "tntbench",
	Short:   "Command-line test driver for tnt-go",
	Version: Version,
}

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "tntbench: .env: %v\n", err)
	}

	RootCmd.PersistentFlags().String("host", "127.0.0.1", "server host")
	RootCmd.PersistentFlags().String("port", "3301", "server port")
	RootCmd.PersistentFlags().Duration("connect-timeout", 5*time.Second, "dial timeout")
	RootCmd.PersistentFlags().Duration("wait-timeout", 5*time.Second, "response wait timeout")
	RootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	viper.SetEnvPrefix("TNTBENCH")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(RootCmd.PersistentFlags())

	RootCmd.AddCommand(pingCmd)
	RootCmd.AddCommand(benchCmd)
}

// Execute adds all child commands to RootCmd and runs it. Called once
// from main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() connector.Config {
	return connector.Config{
		Host:           viper.GetString("host"),
		Port:           viper.GetString("port"),
		ConnectTimeout: viper.GetDuration("connect-timeout"),
		WaitTimeout:    viper.GetDuration("wait-timeout"),
	}
}

func newLogger() *zap.Logger {
	log, err := logging.New(!viper.GetBool("verbose"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tntbench: logger: %v\n", err)
		return zap.NewNop()
	}
	return log
}
