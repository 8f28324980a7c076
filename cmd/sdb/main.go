package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"sdb-go/internal/app"
	"sdb-go/internal/config"
	"sdb-go/internal/encryption"
	"sdb-go/internal/sdb"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an SDBApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(ctx context.Context, operation string) (*app.SDBApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSDBApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(data), nil
}

var rootCmd = &cobra.Command{
	Use:   "sdb",
	Short: "Guard a shared SQLite database: edit locking, snapshots, remote sync",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init DB_PATH",
	Short: "Initialize configuration for a database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		dbPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving database path: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, dbPath, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID:  %s\n", hostID)
		fmt.Printf("Database: %s\n", dbPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:   %s\n", cfg.HostID)
		fmt.Printf("Database:  %s\n", cfg.DBPath)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Retention: %d days\n", cfg.Backup.RetentionDays)
		fmt.Printf("Interval:  %d seconds\n", cfg.Backup.MinIntervalSeconds)
		if cfg.Remote.Type != "" {
			fmt.Printf("Remote:    %s (%s)\n", cfg.Remote.Type, cfg.Remote.FileID)
		}
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if enc.IsConfigured() {
			return fmt.Errorf("key files already exist")
		}

		passphrase, err := readPassphrase("Passphrase for the identity file: ")
		if err != nil {
			return err
		}

		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Recipient key: %s\n", cfg.Encryption.RecipientPath)
		fmt.Printf("Identity:      %s\n", cfg.Encryption.IdentityPath)
		return nil
	},
}

// lock command
var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect the edit lock",
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who holds the edit lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "LockStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		locked, holder := a.LockStatus()
		if !locked {
			fmt.Println("Unlocked.")
			return nil
		}
		if holder == "" {
			fmt.Println("Locked (holder unknown).")
			return nil
		}
		fmt.Printf("Locked by %s\n", holder)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage snapshots",
}

var backupNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Take a snapshot immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "BackupNow")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.BackupNow()
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot written: %s\n", path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "ListSnapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListSnapshots(limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No snapshots recorded.")
			return nil
		}

		for _, e := range entries {
			enc := ""
			if e.Encrypted {
				enc = "  [encrypted]"
			}
			fmt.Printf("%s  %10d  %s%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.SizeBytes,
				e.Path,
				enc,
			)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [SNAPSHOT]",
	Short: "Restore a snapshot over the live database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RestoreSnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		snapshotPath := ""
		if len(args) > 0 {
			snapshotPath, err = filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving snapshot path: %w", err)
			}
		}

		passphrase := ""
		if filepath.Ext(snapshotPath) == ".age" || snapshotPath == "" {
			// The latest snapshot may turn out to be encrypted; prompt
			// up front rather than failing halfway through.
			passphrase, err = readPassphrase("Passphrase (empty if snapshot is unencrypted): ")
			if err != nil {
				return err
			}
		}

		restored, err := a.RestoreSnapshot(snapshotPath, passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %s\n", restored)
		return nil
	},
}

// pull command
var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the remote copy over the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Pull")
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Pull(cmd.Context())
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}
		fmt.Printf("Pulled %s (revision %s, %d bytes)\n", info.Name, info.Revision, info.Size)
		return nil
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local database if the remote is unchanged",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Push")
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Push(cmd.Context())
		switch {
		case errors.Is(err, sdb.ErrConflict):
			return fmt.Errorf("the remote copy changed since your last pull; run `sdb pull` and retry")
		case errors.Is(err, sdb.ErrBusy):
			return fmt.Errorf("another push is in progress; retry in a moment")
		case err != nil:
			return fmt.Errorf("push failed: %w", err)
		}
		fmt.Printf("Pushed (revision %s)\n", info.Revision)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)

	lockCmd.AddCommand(lockStatusCmd)

	backupCmd.AddCommand(backupNowCmd)
	backupCmd.AddCommand(backupListCmd)
	backupListCmd.Flags().IntP("limit", "n", 50, "Maximum number of snapshots to show")
	backupCmd.AddCommand(backupRestoreCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
}
