// Command regis is a terminal front end for the Regis streaming core: an
// interactive chat with provider fallback, prompt improvement, a live voice
// mode and a backend health probe.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag and viper keys shared by every command.
const (
	flagConfig       = "config"
	flagVerbose      = "verbose"
	flagMetricsAddr  = "metrics-addr"
	flagOTLPEndpoint = "otlp-endpoint"
	flagProvider     = "provider"
	flagModel        = "model"
)

var rootCmd = &cobra.Command{
	Use:           "regis",
	Short:         "Regis - dual-provider AI chat with live voice mode",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Regis streams chat replies from Claude (through the backend proxy) or Gemini,
falling back to the other provider when the active one fails.

Configuration is read from a YAML file (--config), then from REGIS_* environment
variables and .env / .env.local files.

Examples:
  regis chat
  regis chat --provider gemini
  regis improve "write a haiku about go"
  regis live
  regis health`,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(flagConfig, "", "Path to a YAML configuration file")
	flags.BoolP(flagVerbose, "v", false, "Enable debug logging")
	flags.String(flagMetricsAddr, "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String(flagOTLPEndpoint, "", "Export traces to this OTLP/HTTP endpoint")
	flags.String(flagProvider, "", "Active provider: claude or gemini")
	flags.String(flagModel, "", "Model to select at startup; its prefix picks the provider")

	for _, name := range []string{flagConfig, flagVerbose, flagMetricsAddr, flagOTLPEndpoint, flagProvider, flagModel} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	viper.SetEnvPrefix("REGIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
