package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/codeforge/internal/config"
	"github.com/codeforge-ai/codeforge/internal/permission"
)

var policyCmd = &cobra.Command{
	Use:   "policy <command>",
	Short: "Show how the permission rules classify a command",
	Long: `Classify a command against the configured permission rules without
executing it. Compound commands are split and every sub-command is matched
individually; the strictest verdict wins. The catastrophic-command screen
runs first.

Examples:
  codeforge policy "git status && rm -rf /tmp/scratch"
  codeforge policy -- npm install left-pad`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPolicy,
}

func runPolicy(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(directory)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	matcher := matcherFromConfig(cfg)

	command := strings.Join(args, " ")

	if form, found := permission.ScreenCommand(command); found {
		fmt.Printf("blocked: catastrophic command form %q\n", form)
		cmd.SilenceErrors = true
		return fmt.Errorf("command refused")
	}

	parts := permission.SplitCommand(command)
	if len(parts) == 0 {
		parts = []string{command}
	}
	for _, part := range parts {
		action, pattern := matcher.Verdict(part)
		if pattern == "" {
			pattern = "(no rule)"
		}
		fmt.Printf("  %-6s %-24s %s\n", action, pattern, part)
	}

	verdict, _ := permission.ClassifyCommand(matcher, command)
	fmt.Printf("verdict: %s\n", verdict)

	if verdict == permission.ActionDeny {
		cmd.SilenceErrors = true
		return fmt.Errorf("command denied by policy")
	}
	return nil
}
