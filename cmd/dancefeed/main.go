package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dancefeed/internal/adapters"
	_ "dancefeed/internal/adapters/balfolknl"
	_ "dancefeed/internal/adapters/cdss"
	_ "dancefeed/internal/adapters/dresden"
	_ "dancefeed/internal/adapters/plugevents"
	"dancefeed/internal/aggregate"
	"dancefeed/internal/config"
	"dancefeed/internal/corpus"
	"dancefeed/internal/fetch"
	"dancefeed/internal/importer"
	appLog "dancefeed/internal/log"
	"dancefeed/internal/metrics"
	"dancefeed/internal/publish"
	"dancefeed/internal/source"
	"dancefeed/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.Init(conf.Log.Level, conf.Log.Format)
	defer appLog.Sync()

	appLog.Info("dancefeed starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"data_path", conf.DataPath,
		"cache_dir", conf.CacheDir,
		"sources", conf.EnabledSources(),
		"publish", conf.GitHub.Enabled(),
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := corpus.NewStore(conf.DataPath)
	existing, err := store.Load()
	if err != nil {
		appLog.Error("failed to load corpus", err, "path", store.Path())
		os.Exit(1)
	}
	live := corpus.New(existing)
	m.SetCorpusSize(live.Len())
	appLog.Info("corpus loaded", "events", live.Len(), "path", store.Path())

	pipeline := importer.New(fetch.NewFetcher(conf.CacheDir, conf.FetchTimeout()), importer.WithMetrics(m))
	runner := aggregate.New(pipeline, buildAdapters(conf), live, store, m)

	if flags.once {
		sum, err := runner.Run(ctx)
		if err != nil {
			appLog.Error("cycle failed", err)
			os.Exit(1)
		}
		if sum.SourceErr != nil {
			// Partial success still exits 0; the corpus was saved.
			appLog.Warn("some sources failed", "failed", sum.Failed, "err", sum.SourceErr)
		}
		return
	}

	sched, err := aggregate.NewScheduler(ctx, conf.RefreshCron, runner)
	if err != nil {
		appLog.Error("failed to create scheduler", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	// First cycle right away rather than waiting for the schedule.
	go func() {
		if _, err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			appLog.Error("initial cycle failed", err)
		}
	}()

	opts := web.Options{
		Corpus:    live,
		Refresher: runner,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if pub := buildPublisher(conf); pub != nil {
		opts.Submitter = pub
	}
	if conf.BasicAuth != nil {
		opts.BasicAuth = &web.BasicAuth{Username: conf.BasicAuth.Username, Password: conf.BasicAuth.Password}
	}

	if err := web.NewServer(opts).StartServer(ctx, conf.Listen); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		cancel()
	}
	appLog.Info("dancefeed exiting")
}

// buildAdapters constructs the enabled sources. A source that cannot be
// built is logged and left out.
func buildAdapters(conf *config.Config) []source.Adapter {
	var out []source.Adapter
	for _, name := range conf.EnabledSources() {
		ctor, err := adapters.Get(name)
		if err != nil {
			appLog.Error("unknown source in config", err, "source", name, "known", adapters.Names())
			continue
		}
		a, err := ctor(adapters.Options{Horizon: conf.Horizon(name), PlugToken: conf.Plug.Token})
		if err != nil {
			appLog.Error("source disabled", err, "source", name)
			continue
		}
		out = append(out, a)
	}
	return out
}

// buildPublisher returns nil when the GitHub workflow is not configured.
func buildPublisher(conf *config.Config) *publish.Publisher {
	gh := conf.GitHub
	if !gh.Enabled() {
		return nil
	}
	key, err := gh.PrivateKeyPEM()
	if err != nil {
		appLog.Error("publishing disabled", err)
		return nil
	}
	repo, err := publish.NewGitHub(publish.GitHubConfig{
		AppID:      gh.AppID,
		PrivateKey: key,
		Owner:      gh.Owner,
		Repository: gh.Repository,
	})
	if err != nil {
		appLog.Error("publishing disabled", err)
		return nil
	}
	return publish.New(repo, gh.MainBranch, gh.MaxBranchAttempts)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/dancefeed/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one aggregation cycle and exit")

	flag.Parse()

	return cfg
}
