package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("notechat %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	// Show whether the required secrets are present without printing them
	printEnvStatus("GEMINI_API_KEY")
	printEnvStatus("NOTION_API_KEY")
	printEnvStatus("NOTION_DATABASE_ID")

	return nil
}

func printEnvStatus(name string) {
	if v := os.Getenv(name); v != "" {
		if len(v) > 8 {
			fmt.Printf("%s: %s...%s (configured)\n", name, v[:4], v[len(v)-4:])
		} else {
			fmt.Printf("%s: (configured)\n", name)
		}
		return
	}
	fmt.Printf("%s: not set\n", name)
}
