package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/codeforge-ai/codeforge/internal/config"
	"github.com/codeforge-ai/codeforge/internal/event"
	"github.com/codeforge-ai/codeforge/internal/logging"
	"github.com/codeforge-ai/codeforge/internal/permission"
	"github.com/codeforge-ai/codeforge/internal/proc"
	"github.com/codeforge-ai/codeforge/internal/shell"
	"github.com/codeforge-ai/codeforge/internal/tool"
)

// engine bundles the wired execution stack behind one command invocation.
type engine struct {
	cfg      *config.Config
	workDir  string
	checker  *permission.Checker
	matcher  *permission.Matcher
	manager  *proc.Manager
	pool     *tool.WorkerPool
	registry *tool.Registry

	closeOnce  sync.Once
	stopSignal func()
}

// newEngine loads configuration, initializes logging, and wires the
// execution stack. Close must be called when the command finishes.
func newEngine(dir string) (*engine, error) {
	workDir, err := GetWorkDir(dir)
	if err != nil {
		return nil, err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}

	initLogging(cfg, paths)

	matcher := matcherFromConfig(cfg)
	checker := permission.NewChecker()
	manager := proc.NewManager()
	pool := tool.NewWorkerPool(tool.DefaultPoolSize)

	registry := tool.DefaultRegistry(workDir, pool,
		tool.WithExecutor(manager),
		tool.WithMatcher(matcher),
		tool.WithChecker(checker),
		tool.WithSelector(shell.NewSelectorWithOverride(cfg.Shell)),
		tool.WithMaxOutputBytes(cfg.MaxOutputBytes),
	)

	e := &engine{
		cfg:      cfg,
		workDir:  workDir,
		checker:  checker,
		matcher:  matcher,
		manager:  manager,
		pool:     pool,
		registry: registry,
	}
	e.stopSignal = e.trapSignals()

	logging.Debug().
		Str("workdir", workDir).
		Int("rules", matcher.Len()).
		Msg("engine ready")

	return e, nil
}

// Close tears the stack down exactly once: running processes first, then
// the worker pool.
func (e *engine) Close() {
	e.closeOnce.Do(func() {
		if e.stopSignal != nil {
			e.stopSignal()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.manager.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("process shutdown")
		}

		e.pool.Close()
		logging.Close()
	})
}

// trapSignals shuts the engine down on SIGINT/SIGTERM so no child process
// outlives the CLI. It returns a function that uninstalls the handler.
func (e *engine) trapSignals() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig, ok := <-ch
		if !ok {
			return
		}
		logging.Warn().Str("signal", sig.String()).Msg("shutting down")
		e.Close()
		os.Exit(1)
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// matcherFromConfig compiles the configured pattern rules.
func matcherFromConfig(cfg *config.Config) *permission.Matcher {
	rules := make([]permission.Rule, 0, len(cfg.Permission))
	for pattern, action := range cfg.Permission {
		rules = append(rules, permission.Rule{
			Pattern: pattern,
			Action:  permission.ParseAction(action),
		})
	}
	return permission.NewMatcher(rules...)
}

// initLogging configures the global logger from config and global flags.
// Logs always go to a file under the state directory; stderr output is
// opt-in via --print-logs.
func initLogging(cfg *config.Config, paths *config.Paths) {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(level)
	logCfg.LogToFile = true
	logCfg.LogDir = paths.State
	if printLogs {
		logCfg.Pretty = true
	} else {
		logCfg.Output = io.Discard
	}
	logging.Init(logCfg)
}

var (
	promptMu sync.Mutex
	stdin    = bufio.NewReader(os.Stdin)
)

// askResponder resolves permission asks for the lifetime of a command.
// With autoApprove it replies "once" to everything; otherwise it prompts on
// the terminal. The returned function unsubscribes.
func askResponder(checker *permission.Checker, autoApprove bool) func() {
	return event.Subscribe(event.PermissionRequired, func(ev event.Event) {
		data, ok := ev.Data.(event.PermissionRequiredData)
		if !ok {
			return
		}
		if autoApprove {
			checker.Respond(data.ID, permission.ReplyOnce)
			return
		}

		// Asks from concurrent batch entries must not interleave on
		// the terminal.
		promptMu.Lock()
		defer promptMu.Unlock()

		fmt.Fprintf(os.Stderr, "\nPermission required: %s\n", data.Title)
		if data.Command != "" {
			fmt.Fprintf(os.Stderr, "  command:  %s\n", data.Command)
		}
		if len(data.Patterns) > 0 {
			fmt.Fprintf(os.Stderr, "  patterns: %s\n", strings.Join(data.Patterns, ", "))
		}
		fmt.Fprint(os.Stderr, "Allow? [y]es once / [a]lways / [N]o: ")

		reply := permission.ReplyReject
		if line, err := stdin.ReadString('\n'); err == nil {
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes", "once":
				reply = permission.ReplyOnce
			case "a", "always":
				reply = permission.ReplyAlways
			}
		}
		checker.Respond(data.ID, reply)
	})
}
