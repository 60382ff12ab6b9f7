package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var improveCmd = &cobra.Command{
	Use:   "improve <prompt>",
	Short: "Rewrite a prompt through the backend",
	Long: `Sends the prompt to the backend's improve endpoint and prints the result.
The original prompt is printed unchanged when the backend cannot improve it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setupApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Fprintln(cmd.OutOrStdout(), a.client.ImprovePrompt(cmd.Context(), strings.Join(args, " ")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(improveCmd)
}
