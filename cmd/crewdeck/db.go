package main

import (
	"fmt"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Crewdeck database",
		Long:  "Connects to the configured database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "crewdeck.yaml", "path to Crewdeck config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	if cfg.DB.Driver == "sqlite" {
		fmt.Fprintf(out, "Connected to sqlite database %s\n", cfg.DB.Path)
	} else {
		fmt.Fprintf(out, "Connected to mysql database %s at %s:%d\n", cfg.DB.Database, cfg.DB.Host, cfg.DB.Port)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nCrewdeck database initialized successfully.")
	return nil
}

// openDB connects to the configured database.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DB.Driver == "sqlite" {
		return db.ConnectSQLite(cfg.DB.Path)
	}
	return db.Connect(cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
}
