package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/Akashdeep-Patra/gitstate/internal/config"
	"github.com/Akashdeep-Patra/gitstate/internal/git"
	"github.com/Akashdeep-Patra/gitstate/internal/logging"
	"github.com/Akashdeep-Patra/gitstate/internal/runner"
	"github.com/Akashdeep-Patra/gitstate/internal/tui"
	"github.com/Akashdeep-Patra/gitstate/internal/watcher"
	tea "github.com/charmbracelet/bubbletea"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	// The process mostly waits on git subprocesses and terminal input; two
	// OS threads are enough unless the user says otherwise.
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(min(2, runtime.NumCPU()))
	}
	debug.SetMemoryLimit(50 * 1024 * 1024) // 50 MiB
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gitstate:", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	path       string
	configFile string
	logLevel   string
}

func buildRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "gitstate",
		Short: "Inspect and drive git bisect, rebase and merge",
		Long: `gitstate reports the state of in-progress git operations (bisect,
rebase, merge) and drives them from the command line or from an
interactive dashboard.

Run without a subcommand to open the dashboard.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"gitstate %s\n  commit:  %s\n  built:   %s\n  go:      %s\n  os/arch: %s/%s\n",
		version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH,
	))

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.path, "path", "p", ".", "Path inside the git repository")
	pf.StringVar(&flags.configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/gitstate/config.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override log_level (debug, info, warn, error, off)")

	rootCmd.AddCommand(
		buildStateCmd(flags),
		buildStatusCmd(flags),
		buildLogCmd(flags),
		buildDiffCmd(flags),
		buildStashCmd(flags),
		buildRemotesCmd(flags),
		buildBranchesCmd(flags),
		buildTagsCmd(flags),
		buildReflogCmd(flags),
		buildBlameCmd(flags),
		buildBisectCmd(flags),
		buildRebaseCmd(flags),
		buildMergeCmd(flags),
		buildCloneCmd(flags),
		buildVersionCmd(),
		buildCompletionCmd(),
	)

	return rootCmd
}

// session is everything a subcommand needs to talk to one repository.
type session struct {
	cfg     *config.Config
	log     *zap.Logger
	runner  runner.Runner
	opts    git.Options
	svc     *git.CLIService
	closeFn func()
}

func (s *session) Close() { s.closeFn() }

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

// newSession wires logging and the runner; svc stays nil.
func newSession(cfg *config.Config, logFile string) (*session, error) {
	log, closeFn, err := logging.New(cfg.LogLevel, logFile)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		log:    log,
		runner: runner.NewExecRunner(log),
		opts: git.Options{
			GitPath:       cfg.GitPath,
			Timeout:       cfg.CommandTimeout,
			StrictParsing: cfg.StrictParsing,
			Logger:        log,
		},
		closeFn: closeFn,
	}, nil
}

// openRepo returns a session bound to the repository at flags.path. The
// dashboard owns the terminal, so its logs always go to a file.
func openRepo(ctx context.Context, flags *globalFlags, dashboard bool) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logFile := cfg.LogFile
	if dashboard && logFile == "" {
		logFile = filepath.Join(config.Directory(), "gitstate.log")
	}
	s, err := newSession(cfg, logFile)
	if err != nil {
		return nil, err
	}
	s.svc, err = git.NewCLIService(ctx, flags.path, s.runner, s.opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.log.Debug("repository opened", zap.String("root", s.svc.RepoRoot()), zap.String("git_dir", s.svc.GitDir()))
	return s, nil
}

func runDashboard(ctx context.Context, flags *globalFlags) error {
	s, err := openRepo(ctx, flags, true)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := tui.Options{
		CacheTTL:  s.cfg.CacheTTL,
		Protected: s.cfg.IsProtected,
		Logger:    s.log,
	}
	events, stopWatch, err := watcher.Watch(s.svc.GitDir(), s.cfg.WatchDebounce, s.log)
	if err != nil {
		s.log.Warn("watcher disabled", zap.Error(err))
	} else {
		defer stopWatch()
		opts.Events = events
	}

	p := tea.NewProgram(tui.New(ctx, s.svc, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !cerr.Is(err, tea.ErrProgramKilled) {
		return cerr.Wrap(err, "running dashboard")
	}
	return nil
}

// buildVersionCmd creates the `gitstate version` subcommand supporting --json.
func buildVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
				"go":      runtime.Version(),
				"os":      runtime.GOOS,
				"arch":    runtime.GOARCH,
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "gitstate %s\n", version)
			fmt.Fprintf(out, "  commit:  %s\n", commit)
			fmt.Fprintf(out, "  built:   %s\n", date)
			fmt.Fprintf(out, "  go:      %s\n", runtime.Version())
			fmt.Fprintf(out, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}

// buildCompletionCmd creates the `gitstate completion` subcommand for shell completions.
func buildCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for gitstate.

Examples:
  # Bash (add to ~/.bashrc)
  gitstate completion bash > /etc/bash_completion.d/gitstate

  # Zsh (add to ~/.zshrc before compinit)
  gitstate completion zsh > "${fpath[1]}/_gitstate"

  # Fish
  gitstate completion fish > ~/.config/fish/completions/gitstate.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}

	return cmd
}
