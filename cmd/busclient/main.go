package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "busclient",
		Short:             "Client for the bus-route reservation API with transparent token renewal",
		SilenceUsage:      true,
		PersistentPreRunE: prepareClientConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("base_url", defaultBaseURL, "Backend base URL")
	flags.String("credentials_url", defaultCredentialsURL(), "Credential store URL (memory://, sqlite://path, postgres://..., redis://...)")
	flags.Duration("request_timeout", 30*time.Second, "Per-exchange timeout; 0 uses the transport default")
	flags.Float64("rate_limit_rps", 0, "Outbound requests per second; 0 disables limiting")
	flags.Int("rate_limit_burst", 1, "Outbound request burst when rate limiting is enabled")
	flags.String("log_level", "info", "Log level (debug, info, warn, error)")

	for _, name := range []string{"base_url", "credentials_url", "request_timeout", "rate_limit_rps", "rate_limit_burst", "log_level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	viper.SetEnvPrefix("BUSCLIENT")
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newWhoAmICommand(),
		newStatusCommand(),
		newRequestCommand(),
		newRoutesCommand(),
		newBusesCommand(),
		newServeCommand(),
	)
	return rootCmd
}
