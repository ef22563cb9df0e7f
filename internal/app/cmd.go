package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/sharediary/internal/oauthbridge"
)

// コールバックURLの解析方式
const (
	strategyAuto   = "auto"
	strategyURL    = "url"
	strategyRegexp = "regexp"
)

// NewRootCommand はdiaryコマンドのルートを返す。サブコマンドなしではserveとして動作する。
// logOutは構造化ログの出力先。
func NewRootCommand(logOut io.Writer) *cobra.Command {
	var migrateFirst bool

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := Init(logOut)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return runServe(cmd.Context(), cfg, migrateFirst)
	}

	root := &cobra.Command{
		Use:           "diary",
		Short:         "Shared diary API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before starting")

	root.AddCommand(
		serveCmd,
		newMigrateCommand(logOut),
		newHealthcheckCommand(),
		newCallbackCommand(),
	)
	return root
}

func newMigrateCommand(logOut io.Writer) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(logOut)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg, up)
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all up migrations",
			Args:  cobra.NoArgs,
			RunE:  run(true),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE:  run(false),
		},
	)
	return migrateCmd
}

// newHealthcheckCommand は軽量サブコマンドのため、設定の読み込みをスキップする。
func newHealthcheckCommand() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that the local API server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), baseURL)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", defaultHealthcheckURL(), "server base URL")
	return cmd
}

func defaultHealthcheckURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return "http://localhost:" + port
}

func newCallbackCommand() *cobra.Command {
	callbackCmd := &cobra.Command{
		Use:   "callback",
		Short: "Inspect OAuth deep-link callbacks",
	}

	var strategy string
	parseCmd := &cobra.Command{
		Use:   "parse <url>",
		Short: "Extract code and state from a callback URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cb  oauthbridge.Callback
				err error
			)
			switch strategy {
			case strategyAuto:
				cb, err = oauthbridge.ParseCallback(args[0])
			case strategyURL:
				cb, err = oauthbridge.ParseCallbackURL(args[0])
			case strategyRegexp:
				cb, err = oauthbridge.ParseCallbackRegexp(args[0])
			default:
				return fmt.Errorf("unknown strategy %q", strategy)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cb)
		},
	}
	parseCmd.Flags().StringVar(&strategy, "strategy", strategyAuto, "parsing strategy: auto, url or regexp")

	callbackCmd.AddCommand(parseCmd)
	return callbackCmd
}
