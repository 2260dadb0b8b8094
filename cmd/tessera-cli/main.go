// Command tessera-cli is a thin operator tool around a tessera store: get,
// set, delete and backup a single database directory from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tessera "github.com/tesseradb/tessera"
	"github.com/tesseradb/tessera/internal/config"
)

var (
	dbPath     string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tessera-cli",
		Short: "Operate on a tessera key-space store",
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./db", "database directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (overrides --db's storageEngine/rocksBlockCacheMB)")

	rootCmd.AddCommand(
		newGetCommand(),
		newSetCommand(),
		newDeleteCommand(),
		newBackupCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(rootCmd.UsageString())
		os.Exit(1)
	}
}

func openDB() (*tessera.DB, error) {
	if configPath == "" {
		return tessera.Open(dbPath, nil)
	}
	cfg, err := config.LoadTOML(configPath)
	if err != nil {
		return nil, err
	}
	return tessera.Open(dbPath, cfg)
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			val, ok := db.Get([]byte(args[0]))
			if !ok {
				return fmt.Errorf("key not found: %s", args[0])
			}
			fmt.Println(string(val))
			return nil
		},
	}
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Set([]byte(args[0]), []byte(args[1]))
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Delete([]byte(args[0]))
		},
	}
}

func newBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the store's WAL and segment files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			info, err := db.Store().Backup()
			if err != nil {
				return err
			}
			for _, f := range info.FileList {
				fmt.Printf("%s\t%d bytes\n", f.Name, f.Size)
			}
			return nil
		},
	}
}
