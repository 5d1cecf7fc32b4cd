package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available commands",
	Long:  `Print the full command catalog with one line per command.`,
	Run:   runList,
}

func runList(cmd *cobra.Command, args []string) {
	var lines []string
	collectCommands(rootCmd, "", &lines)
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Println(line)
	}
}

func collectCommands(c *cobra.Command, prefix string, lines *[]string) {
	for _, sub := range c.Commands() {
		if sub.Hidden || sub.Name() == "help" {
			continue
		}
		full := strings.TrimSpace(prefix + " " + sub.Name())
		if sub.Runnable() {
			*lines = append(*lines, fmt.Sprintf("%-28s %s", full, sub.Short))
		}
		collectCommands(sub, full, lines)
	}
}
