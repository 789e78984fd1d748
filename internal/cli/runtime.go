package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/tribe/internal/api"
	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/chatsync"
	"github.com/tOgg1/tribe/internal/config"
	"github.com/tOgg1/tribe/internal/kv"
	"github.com/tOgg1/tribe/internal/logging"
	"github.com/tOgg1/tribe/internal/metrics"
)

type app struct {
	configFile string
}

// runtime is everything a command needs to talk to the server and the
// local store. Close releases it.
type runtime struct {
	cfg     *config.Config
	storage kv.Storage
	client  *api.Client
	metrics *metrics.Metrics
	session *chatsync.Session

	logFile     *os.File
	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

type logTarget int

const (
	logToStderr logTarget = iota
	logToFileOnly
)

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if a.configFile != "" {
		loader.SetConfigFile(a.configFile)
	}
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.Root().PersistentFlags().Lookup(name)
		}
		if flag == nil || !flag.Changed {
			continue
		}
		if err := loader.BindFlag(key, flag); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, loader, nil
}

func (a *app) open(cmd *cobra.Command, target logTarget) (*runtime, error) {
	cfg, _, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg}
	if err := rt.initLogging(cmd, target); err != nil {
		return nil, err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		rt.Close()
		return nil, err
	}
	storage, err := kv.Open(cmd.Context(), kv.Options{Backend: cfg.Storage.Backend, Dir: cfg.Storage.Path})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	rt.storage = storage

	rt.metrics = metrics.New()
	client, err := api.New(api.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Observer:  rt.metrics,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.client = client

	ns := kv.Namespace(client.BaseURL())
	store := chat.NewStore(storage, ns)
	rt.metrics.TrackStoreSize(store.Len)
	rt.session = chatsync.NewSession(store, chat.NewDirectory(storage, ns), client, chatsync.Options{
		PageSize: cfg.Sync.PageSize,
		Recorder: rt.metrics,
	})

	if cfg.Metrics.Addr != "" {
		rt.serveMetrics(cmd.Context(), cfg.Metrics.Addr)
	}
	return rt, nil
}

func (rt *runtime) initLogging(cmd *cobra.Command, target logTarget) error {
	var out io.Writer = cmd.ErrOrStderr()
	if rt.cfg.Logging.File != "" {
		f, err := logging.OpenFile(rt.cfg.Logging.File)
		if err != nil {
			return err
		}
		rt.logFile = f
		out = f
	} else if target == logToFileOnly {
		out = io.Discard
	}
	logging.Init(logging.Config{
		Level:        rt.cfg.Logging.Level,
		Format:       rt.cfg.Logging.Format,
		Output:       out,
		EnableCaller: rt.cfg.Logging.EnableCaller,
	})
	return nil
}

func (rt *runtime) serveMetrics(parent context.Context, addr string) {
	ctx, cancel := context.WithCancel(parent)
	rt.stopMetrics = cancel
	rt.metricsDone = make(chan struct{})
	go func() {
		defer close(rt.metricsDone)
		if err := rt.metrics.Serve(ctx, addr); err != nil {
			log := logging.Component("metrics")
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
}

// Close stops the metrics server and releases storage.
func (rt *runtime) Close() {
	if rt.stopMetrics != nil {
		rt.stopMetrics()
		<-rt.metricsDone
	}
	if rt.storage != nil {
		if err := rt.storage.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close storage")
		}
	}
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}
