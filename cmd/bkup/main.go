package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bkup-go/internal/app"
	"bkup-go/internal/bk"
	"bkup-go/internal/config"
	"bkup-go/internal/ui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file from its default location.
func loadConfig() (*config.Config, app.Defaults, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, app.Defaults{}, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, defaults, fmt.Errorf("reading config (run `bkup config init` first): %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a BkupApp. The caller must defer app.Close().
// command identifies the CLI command being run in the diagnostic log.
func newApp(cmd *cobra.Command, command string, args []string) (*app.BkupApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewBkupApp(cfg, command, args, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "bkup",
	Short:        "Copy selected files and folders to a backup destination",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults.BaseDir)

		var passphrase string
		if encrypt {
			cfg.Encryption.Enabled = true
			passphrase, err = newPassphrase()
			if err != nil {
				return err
			}
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if encrypt {
			if err := app.SetupEncryption(cfg.Encryption, passphrase); err != nil {
				return err
			}
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Host ID:  %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		if encrypt {
			fmt.Printf("Encryption keys written to %s\n", cfg.Encryption.PublicKeyPath)
			fmt.Println("Keep your passphrase safe: encrypted backups cannot be restored without it.")
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Host ID:      %s\n", cfg.HostID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Backup Log:   %s\n", cfg.JournalPath)
		fmt.Printf("Incremental:  %t\n", cfg.Incremental)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Encryption:   %t\n", cfg.Encryption.Enabled)
		if len(cfg.Filesystem.Ignore) > 0 {
			fmt.Printf("Ignore:       %v\n", cfg.Filesystem.Ignore)
		}
		if cfg.Destination.S3Region != "" || cfg.Destination.S3Endpoint != "" {
			fmt.Printf("S3 Region:    %s\n", cfg.Destination.S3Region)
			fmt.Printf("S3 Endpoint:  %s\n", cfg.Destination.S3Endpoint)
		}
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add PATH...",
	Short: "Select files or folders for backup",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "add", args)
		if err != nil {
			return err
		}
		defer a.Close()

		failed := 0
		for _, arg := range args {
			item, err := a.Add(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "cannot add %s: %v\n", arg, err)
				failed++
				continue
			}
			fmt.Printf("Added %s: %s\n", kind(item), item.Path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d path(s) not added", failed, len(args))
		}
		return nil
	},
}

// remove command
var removeCmd = &cobra.Command{
	Use:   "remove PATH...",
	Short: "Deselect files or folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "remove", args)
		if err != nil {
			return err
		}
		defer a.Close()

		failed := 0
		for _, arg := range args {
			if err := a.Remove(arg); err != nil {
				fmt.Fprintf(os.Stderr, "cannot remove %s: %v\n", arg, err)
				failed++
				continue
			}
			fmt.Printf("Removed: %s\n", arg)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d path(s) not removed", failed, len(args))
		}
		return nil
	},
}

// dest command
var destCmd = &cobra.Command{
	Use:   "dest [PATH]",
	Short: "Show or set the backup destination",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "dest", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			if dest := a.Destination(); dest != "" {
				fmt.Println(dest)
			} else {
				fmt.Println("No destination set.")
			}
			return nil
		}

		dest, err := a.SetDestination(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Destination: %s\n", dest)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List selected files and folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "list", args)
		if err != nil {
			return err
		}
		defer a.Close()

		items := a.Items()
		if len(items) == 0 {
			fmt.Println("Nothing selected.")
		}
		for _, item := range items {
			fmt.Printf("  %-6s  %s\n", kind(item), item.Path)
		}

		files, folders := a.Counts()
		fmt.Printf("\n%d file(s), %d folder(s)\n", files, folders)

		dest := a.Destination()
		if dest == "" {
			fmt.Println("Destination: not set")
			return nil
		}
		free, ok, err := a.FreeSpace()
		switch {
		case err != nil:
			fmt.Printf("Destination: %s (free space unknown: %v)\n", dest, err)
		case ok:
			fmt.Printf("Destination: %s (%s free)\n", dest, ui.FormatBytes(free))
		default:
			fmt.Printf("Destination: %s\n", dest)
		}
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Copy the selection to the destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")

		a, err := newApp(cmd, "run", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		exec, err := a.StartRun(ctx)
		if err != nil {
			return fmt.Errorf("starting backup: %w", err)
		}
		defer exec.Close()

		var summary bk.Summary
		if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
			summary, err = ui.Run(exec, cancel, os.Stdin, os.Stdout)
		} else {
			summary, err = ui.PrintPlain(exec, os.Stdout)
		}
		if err != nil {
			a.Fail(err)
			return err
		}
		if summary.Aborted {
			err := errors.New("backup aborted")
			a.Fail(err)
			return err
		}
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the end of the backup log",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("lines")

		a, err := newApp(cmd, "log", args)
		if err != nil {
			return err
		}
		defer a.Close()

		lines, err := a.LogTail(n)
		if err != nil {
			a.Fail(err)
			return err
		}
		if len(lines) == 0 {
			fmt.Printf("Backup log %s is empty.\n", a.JournalPath())
			return nil
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", args)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.History(limit)
		if err != nil {
			a.Fail(err)
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No backup runs recorded.")
			return nil
		}

		for _, j := range jobs {
			duration := ""
			if j.FinishedAt.Valid {
				duration = j.FinishedAt.Time.Sub(j.StartedAt).Truncate(time.Millisecond).String()
			}
			s := j.Summary
			fmt.Printf("%s  %s  %-8s  copied:%d skipped:%d failed:%d  %-10s  %s\n",
				j.ID[:min(8, len(j.ID))],
				j.StartedAt.Local().Format("2006-01-02 15:04:05"),
				j.Status,
				s.FilesCopied,
				s.FilesSkipped,
				s.FilesFailed,
				duration,
				j.Destination,
			)
		}
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt SRC DST",
	Short: "Restore encrypted copies below SRC into DST",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		result, err := app.Decrypt(cfg.Encryption, passphrase, args[0], args[1], func(path string, err error) {
			fmt.Fprintf(os.Stderr, "cannot decrypt %s: %v\n", path, err)
		})
		if err != nil {
			return err
		}

		fmt.Printf("Decrypted %d file(s) into %s\n", result.Decrypted, args[1])
		if result.Failed > 0 {
			return fmt.Errorf("%d file(s) could not be decrypted", result.Failed)
		}
		return nil
	},
}

func kind(item bk.BackupItem) string {
	if item.IsDir {
		return "folder"
	}
	return "file"
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Echo the diagnostic log to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Generate an age key pair and encrypt copies")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(destCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("plain", false, "Print one line per file instead of the progress view")
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntP("lines", "n", 20, "Number of lines to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(decryptCmd)
}
