package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultguard/vaultguard/internal/strength"
)

// strengthCmd represents the strength command
var strengthCmd = &cobra.Command{
	Use:     "strength [password]",
	Aliases: []string{"score", "check-password"},
	Short:   "Score a candidate password",
	Long: `Score a candidate password on the 0-4 scale used across VaultGuard.

The candidate is read from the first argument, or from stdin when no
argument is given, so it can be piped in without landing in shell history.

Examples:
  # Score from stdin
  echo -n 'correct horse battery staple' | vaultguard strength

  # Score an argument (visible in shell history!)
  vaultguard strength 'hunter2'

  # Machine readable
  echo -n 'hunter2' | vaultguard strength --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStrength,
}

func init() {
	RootCmd.AddCommand(strengthCmd)
}

func runStrength(cmd *cobra.Command, args []string) error {
	var candidate string
	if len(args) == 1 {
		candidate = args[0]
	} else {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read candidate from stdin: %w", err)
		}
		candidate = strings.TrimRight(line, "\r\n")
	}

	result := strength.Score(candidate)

	if globalFlags.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Printf("Score:  %d/4 (%s)\n", result.Score, result.Label)
	for _, suggestion := range result.Suggestions {
		fmt.Printf("  - %s\n", suggestion)
	}
	return nil
}
