package main

import (
	"context"
	"fmt"
	stdLog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/bookshelf-service/catalog/app"
	"github.com/Astemirdum/bookshelf-service/catalog/config"
	"github.com/Astemirdum/bookshelf-service/pkg/database"
)

var (
	logLevel     string
	dbDriver     string
	dbPath       string
	bootstrapCSV string
)

func options() ([]config.Option, error) {
	opts := []config.Option{config.WithWriteTimeout(time.Minute)}
	if logLevel != "" {
		level, err := zapcore.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithLogLevel(level))
	}
	if dbDriver != "" || dbPath != "" {
		driver := database.Driver(dbDriver)
		if driver == "" {
			driver = database.DriverSQLite
		}
		opts = append(opts, config.WithDatabase(driver, dbPath))
	}
	if bootstrapCSV != "" {
		opts = append(opts, config.WithBootstrapCSV(bootstrapCSV))
	}
	return opts, nil
}

func loadConfig() (*config.Config, error) {
	opts, err := options()
	if err != nil {
		return nil, err
	}
	return config.NewConfig(opts...), nil
}

var rootCmd = &cobra.Command{
	Use:           "bookshelf",
	Short:         "Personal book catalog service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bootstrap the catalog if empty and start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app.Run(cfg)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Replace the whole catalog with the rows of a spreadsheet export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		imported, dropped, err := app.Import(cmd.Context(), cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d books, dropped %d rows\n", imported, dropped)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return app.Migrate(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "sqlite database file")
	serveCmd.Flags().StringVar(&bootstrapCSV, "bootstrap-csv", "", "spreadsheet loaded when the catalog is empty")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd, importCmd, migrateCmd)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLog.Fatal("load envs from .env ", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
