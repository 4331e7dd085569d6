// Command seolens crawls a website with headless browsers and collects
// page-level SEO data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/seolens/seolens/internal/checkpoint"
	"github.com/seolens/seolens/internal/logger"
	"github.com/seolens/seolens/internal/shutdown"
	"github.com/seolens/seolens/pkg/crawler"
)

var (
	flagConfig      string
	flagOutput      string
	flagMaxPages    int
	flagMaxDepth    int
	flagConcurrency int
	flagPoolSize    int
	flagDelay       time.Duration
	flagTimeout     time.Duration
	flagRobots      bool
	flagPerf        bool
	flagKeepHTML    bool
	flagHeadful     bool
	flagVerbose     bool
	flagDebug       bool
)

func main() {
	root := &cobra.Command{
		Use:           "seolens",
		Short:         "Resumable browser-based SEO site crawler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (YAML or JSON)")
	root.PersistentFlags().StringVarP(&flagOutput, "out", "o", "./crawl-output", "output directory")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "debug logging")

	root.AddCommand(crawlCmd(), resumeCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagMaxPages, "max-pages", 100, "maximum pages to crawl")
	cmd.Flags().IntVar(&flagMaxDepth, "max-depth", 0, "maximum BFS depth (0 = unlimited)")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 3, "maximum concurrent fetches")
	cmd.Flags().IntVar(&flagPoolSize, "pool", 3, "browser handle pool size")
	cmd.Flags().DurationVar(&flagDelay, "delay", time.Second, "minimum delay per domain")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "navigation timeout")
	cmd.Flags().BoolVar(&flagRobots, "respect-robots", true, "honor robots.txt")
	cmd.Flags().BoolVar(&flagPerf, "perf", false, "sample page performance after the crawl")
	cmd.Flags().BoolVar(&flagKeepHTML, "keep-html", false, "store raw page HTML")
	cmd.Flags().BoolVar(&flagHeadful, "headful", false, "run the browser with a visible window")
}

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a site from a seed URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args[0], false)
		},
	}
	addCrawlFlags(cmd)
	return cmd
}

func resumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted crawl from its checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := checkpoint.Load(checkpointPath())
			if rec == nil {
				return fmt.Errorf("no checkpoint found in %s", flagOutput)
			}
			return runCrawl(cmd, rec.Config.StartURL, true)
		},
	}
	addCrawlFlags(cmd)
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved checkpoint for an output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := checkpoint.Load(checkpointPath())
			if rec == nil {
				return fmt.Errorf("no checkpoint found in %s", flagOutput)
			}

			fmt.Printf("Start URL:     %s\n", rec.Config.StartURL)
			fmt.Printf("Status:        %s\n", rec.Status)
			fmt.Printf("Pages crawled: %d / %d\n", rec.Progress.PagesCrawled, rec.Config.MaxPages)
			fmt.Printf("Queued:        %d\n", len(rec.Queue))
			fmt.Printf("Visited:       %d\n", len(rec.VisitedURLs))
			if rec.Config.MaxDepth != nil {
				fmt.Printf("Max depth:     %d\n", *rec.Config.MaxDepth)
			}
			fmt.Printf("Started:       %s\n", rec.Progress.StartedAt.Format(time.RFC3339))
			fmt.Printf("Last updated:  %s\n", rec.Progress.LastUpdated.Format(time.RFC3339))
			return nil
		},
	}
}

func checkpointPath() string {
	return filepath.Join(flagOutput, checkpoint.FileName)
}

// buildConfig layers the config file under the command-line flags:
// only flags the user actually passed override file values.
func buildConfig(cmd *cobra.Command, startURL string, resume bool) (crawler.Config, error) {
	cfg := crawler.DefaultConfig()
	if flagConfig != "" {
		loaded, err := crawler.LoadConfigFile(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("out") || cfg.OutputDir == "" {
		cfg.OutputDir = flagOutput
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages = flagMaxPages
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = flagMaxDepth
	}
	if flags.Changed("concurrency") {
		cfg.MaxConcurrent = flagConcurrency
	}
	if flags.Changed("pool") {
		cfg.PoolSize = flagPoolSize
	}
	if flags.Changed("delay") {
		cfg.Delay = flagDelay
	}
	if flags.Changed("timeout") {
		cfg.NavTimeout = flagTimeout
	}
	if flags.Changed("respect-robots") {
		cfg.RespectRobots = flagRobots
	}
	if flags.Changed("perf") {
		cfg.SamplePerformance = flagPerf
	}
	if flags.Changed("keep-html") {
		cfg.KeepHTML = flagKeepHTML
	}
	if flags.Changed("headful") {
		cfg.Headless = !flagHeadful
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
	if flags.Changed("debug") {
		cfg.Debug = flagDebug
	}

	cfg.StartURL = startURL
	cfg.Resume = resume
	return cfg, nil
}

func runCrawl(cmd *cobra.Command, startURL string, resume bool) error {
	cfg, err := buildConfig(cmd, startURL, resume)
	if err != nil {
		return err
	}

	level := logger.InfoLevel
	if cfg.Debug {
		level = logger.DebugLevel
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})

	c, err := crawler.New(
		crawler.WithConfig(cfg),
		crawler.WithLogger(log),
	)
	if err != nil {
		return err
	}

	handler := shutdown.New(30*time.Second, log)
	handler.Listen()

	results, err := c.Start(handler.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	s := c.Summary()
	log.Infof("collected %d pages into %s", len(results), cfg.OutputDir)
	if s.Resumed {
		log.Info("crawl was resumed from a checkpoint")
	}
	return nil
}
