package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"feedhub/pkg/aggregator"
	"feedhub/pkg/api"
	"feedhub/pkg/cache"
	"feedhub/pkg/config"
	"feedhub/pkg/content"
	"feedhub/pkg/fetch"
	"feedhub/pkg/httpclient"
	"feedhub/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "feedhub",
	Short: "Aggregate recent articles from OPML subscriptions",
	Long: `feedhub reads an OPML subscription list, fetches every RSS/Atom feed in it
with bounded concurrency and serves the articles of the last few days as JSON.

Example usage:
  feedhub                        # serve on the configured address
  feedhub subscriptions          # print the subscription list as JSON
  feedhub articles               # fetch once and print the articles as JSON`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /subscriptions and /articles over HTTP",
	RunE:  runServe,
}

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Print the subscribed feeds as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds, err := newService().GetSubscriptions(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(feeds)
	},
}

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Fetch every feed once and print the recent articles as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := newService().GetArticles(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(articles)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "HCL config file (default ./feedhub.hcl, ./feedhub.local.hcl)")
	rootCmd.AddCommand(serveCmd, subscriptionsCmd, articlesCmd)
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	return logger.Init(logger.Config{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
}

// newService wires the aggregation pipeline from the loaded config
func newService() *aggregator.Service {
	client := httpclient.New(httpclient.Options{
		UserAgent:    cfg.UserAgent,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	processor := content.NewProcessor(content.Options{
		SanitizeHTML:     cfg.SanitizeHTML,
		PlainDescription: cfg.PlainDescription,
		FillMissing:      cfg.FillMissing,
	})

	coordinator := fetch.New(client, cache.New(),
		fetch.WithMaxConcurrent(cfg.MaxConcurrent),
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithMaxBodyBytes(cfg.MaxBodyBytes),
		fetch.WithProcessor(processor),
	)

	return aggregator.New(cfg.SubscriptionsPath, coordinator, aggregator.WithWindow(cfg.Window))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var origins []string
	if cfg.AllowedOrigin != "" {
		origins = []string{cfg.AllowedOrigin}
	}

	logger.Infof("subscriptions from %s, window %s, %d concurrent fetches", cfg.SubscriptionsPath, cfg.Window, cfg.MaxConcurrent)
	server := api.NewServer(newService(), api.Config{AllowedOrigins: origins})
	return api.Start(ctx, server, cfg.ListenAddr)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}
