package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/codeforge-ai/codeforge/internal/tool"
)

var (
	execTimeout int
	execWorkDir string
	execYes     bool
	execDesc    string
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command>",
	Short: "Execute one shell command under the permission policy",
	Long: `Execute a single shell command through the engine: permission rules
are applied first, the command runs under a timeout with output capping,
and the formatted result is printed.

Examples:
  codeforge exec -- ls -la
  codeforge exec --timeout 5000 -- go test ./...
  codeforge exec --yes -- git push origin main`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runExec,
}

func init() {
	execCmd.Flags().IntVar(&execTimeout, "timeout", 0, "Timeout in milliseconds (0 uses the config default)")
	execCmd.Flags().StringVar(&execWorkDir, "workdir", "", "Working directory for the command")
	execCmd.Flags().BoolVarP(&execYes, "yes", "y", false, "Approve permission prompts automatically")
	execCmd.Flags().StringVar(&execDesc, "description", "", "Short description recorded with the command")
}

func runExec(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(directory)
	if err != nil {
		return err
	}
	defer eng.Close()

	unsubscribe := askResponder(eng.checker, execYes)
	defer unsubscribe()

	timeout := execTimeout
	if timeout == 0 {
		timeout = eng.cfg.TimeoutMillis
	}
	desc := execDesc
	if desc == "" {
		desc = "codeforge exec"
	}

	input, err := json.Marshal(tool.BashInput{
		Command:     strings.Join(args, " "),
		Description: desc,
		Timeout:     timeout,
		WorkDir:     execWorkDir,
	})
	if err != nil {
		return err
	}

	bash, ok := eng.registry.Get("bash")
	if !ok {
		return fmt.Errorf("bash tool not registered")
	}

	toolCtx := &tool.Context{
		SessionID: "cli-" + ulid.Make().String(),
		CallID:    ulid.Make().String(),
		WorkDir:   eng.workDir,
	}

	res, err := bash.Execute(cmd.Context(), input, toolCtx)
	if err != nil {
		return err
	}

	if res.Output != "" {
		fmt.Println(res.Output)
	}
	if res.Error != nil {
		// The failure is already rendered in the output block; the
		// returned error sets the exit status.
		cmd.SilenceErrors = true
		return res.Error
	}
	return nil
}
