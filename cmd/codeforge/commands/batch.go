package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/codeforge-ai/codeforge/internal/tool"
)

var batchYes bool

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Run several tool invocations concurrently",
	Long: `Dispatch a JSON list of tool invocations onto the shared worker pool
and print the aggregate report. The list is read from a file or, with no
argument, from stdin.

Input format:
  [
    {"name": "bash", "arguments": {"command": "go vet ./...", "description": "vet"}},
    {"name": "glob", "arguments": {"pattern": "**/*.go"}}
  ]

At most 10 invocations per batch; batches cannot nest.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatch,
}

func init() {
	batchCmd.Flags().BoolVarP(&batchYes, "yes", "y", false, "Approve permission prompts automatically")
}

func runBatch(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}

	var invocations []tool.BatchInvocation
	if err := json.Unmarshal(data, &invocations); err != nil {
		return fmt.Errorf("invalid batch input: %w", err)
	}

	eng, err := newEngine(directory)
	if err != nil {
		return err
	}
	defer eng.Close()

	unsubscribe := askResponder(eng.checker, batchYes)
	defer unsubscribe()

	input, err := json.Marshal(tool.BatchInput{Tools: invocations})
	if err != nil {
		return err
	}

	batch, ok := eng.registry.Get("batch")
	if !ok {
		return fmt.Errorf("batch tool not registered")
	}

	toolCtx := &tool.Context{
		SessionID: "cli-" + ulid.Make().String(),
		CallID:    ulid.Make().String(),
		WorkDir:   eng.workDir,
	}

	res, err := batch.Execute(cmd.Context(), input, toolCtx)
	if err != nil {
		return err
	}

	if res.Output != "" {
		fmt.Println(res.Output)
	}
	if res.Error != nil {
		cmd.SilenceErrors = true
		return res.Error
	}
	if failed, ok := res.Metadata["failed"].(int); ok && failed > 0 {
		cmd.SilenceErrors = true
		return fmt.Errorf("%d of %d invocations failed", failed, res.Metadata["total"])
	}
	return nil
}
