// Command studio serves the ToneMatch web front end.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tonematch/studio"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "studio",
		Short:         "studio - the ToneMatch web front end",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the studio version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("studio %s\n", version)
		},
	}
}

func serveCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env is a development convenience; real deployments set the env.
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	cmd.Flags().String("addr", ":3000", "listen address")
	cmd.Flags().Bool("tone-lookup", false, "ask the backend for an existing tone profile")
	return cmd
}

// loadConfig merges, lowest first: defaults, the YAML file, STUDIO_* env vars
// and serve flags. BACKEND_URL is read unprefixed as well.
func loadConfig(path string, flags *pflag.FlagSet) (studio.Config, error) {
	v := viper.New()
	if err := v.BindPFlag("addr", flags.Lookup("addr")); err != nil {
		return studio.Config{}, err
	}
	if err := v.BindPFlag("tone_lookup", flags.Lookup("tone-lookup")); err != nil {
		return studio.Config{}, err
	}
	v.SetEnvPrefix("STUDIO")
	v.AutomaticEnv()
	if err := v.BindEnv("backend_url", "STUDIO_BACKEND_URL", "BACKEND_URL"); err != nil {
		return studio.Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return studio.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := studio.Config{
		Addr:              v.GetString("addr"),
		PublicURL:         v.GetString("public_url"),
		BackendURL:        v.GetString("backend_url"),
		DatabasePath:      v.GetString("database_path"),
		SessionSecret:     v.GetString("session_secret"),
		CookieSecure:      v.GetBool("cookie_secure"),
		ToneLookup:        v.GetBool("tone_lookup"),
		StrategyInterval:  v.GetDuration("strategy_interval"),
		ContentInterval:   v.GetDuration("content_interval"),
		WatchLease:        v.GetDuration("watch_lease"),
		FirstFetchWait:    v.GetDuration("first_fetch_wait"),
		StateRetention:    v.GetDuration("state_retention"),
		LinkRequestLimit:  v.GetInt("link_request_limit"),
		LinkRequestWindow: v.GetDuration("link_request_window"),
	}
	if cfg.BackendURL == "" {
		return cfg, errors.New("BACKEND_URL is required")
	}
	if cfg.SessionSecret == "" {
		return cfg, errors.New("STUDIO_SESSION_SECRET is required")
	}
	return cfg, nil
}

func serve(cfg studio.Config) error {
	app := studio.New(cfg)
	defer app.Close()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(ctx)
}
