package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/sdk"
)

var errBackendDown = errors.New("backend is not reachable")

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the backend and show provider availability",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setupApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		h := a.client.HealthCheck(cmd.Context())
		out := cmd.OutOrStdout()
		if healthJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(h); err != nil {
				return err
			}
		} else {
			printHealth(out, h)
		}
		if !h.Backend {
			return errBackendDown
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Print the result as JSON")
}

func printHealth(w io.Writer, h sdk.Health) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("backend"), status(h.Backend))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("claude"), status(h.Claude))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("gemini"), status(h.Gemini))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("provider"), h.Provider)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("model"), h.Model)
}
