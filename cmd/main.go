package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/spatial-lookup/featureflag"
	lookuphttp "github.com/aukilabs/spatial-lookup/http"
	"github.com/aukilabs/spatial-lookup/lookup"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "spatial_lookup_info",
		Help:        "Spatial lookup server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"LOOKUP_ADDR"                 help:"Listening address for the diagnostic endpoints."`
	AdminAddr          string        `cli:""        env:"LOOKUP_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"LOOKUP_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"LOOKUP_LOG_INDENT"           help:"Indent logs."`
	Algorithm          string        `cli:""        env:"LOOKUP_ALGORITHM"            help:"Spatial lookup algorithm (naive|bvh|octree)."`
	EntityCount        int           `cli:""        env:"LOOKUP_ENTITY_COUNT"         help:"Number of simulated entities."`
	WorldHalfExtent    int           `cli:",hidden" env:"LOOKUP_WORLD_HALF_EXTENT"    help:"Half extent of the simulated world cube."`
	QueryRadius        int           `cli:",hidden" env:"LOOKUP_QUERY_RADIUS"         help:"Radius of the simulated queries."`
	QueriesPerTick     int           `cli:",hidden" env:"LOOKUP_QUERIES_PER_TICK"     help:"Number of radius queries per tick."`
	TickInterval       time.Duration `cli:",hidden" env:"LOOKUP_TICK_INTERVAL"        help:"The duration of a simulation tick."`
	Seed               int64         `cli:",hidden" env:"LOOKUP_SEED"                 help:"Seed for the simulated world."`
	StreamInterval     time.Duration `cli:",hidden" env:"LOOKUP_STREAM_INTERVAL"      help:"The duration between each debug stream snapshot."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"LOOKUP_LOG_SUMMARY_INTERVAL" help:"The duration between each simulation log summary."`
	FeatureFlags       []string      `cli:",hidden" env:"LOOKUP_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                           help:"Show version."`
	Help               bool          `cli:""        env:"-"                           help:"Show help."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		Algorithm:          "octree",
		EntityCount:        10_000,
		WorldHalfExtent:    100,
		QueryRadius:        10,
		QueriesPerTick:     8,
		TickInterval:       time.Millisecond * 15,
		Seed:               time.Now().UnixNano(),
		StreamInterval:     time.Millisecond * 100,
		LogSummaryInterval: time.Minute,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a spatial lookup server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	algorithm, err := newAlgorithm(conf.Algorithm)
	if err != nil {
		logs.Fatal(err)
	}

	flags := featureflag.New(conf.FeatureFlags)

	sim := newSimulation(simulationOptions{
		Algorithm:          algorithm,
		EntityCount:        conf.EntityCount,
		WorldHalfExtent:    float32(conf.WorldHalfExtent),
		QueryRadius:        float32(conf.QueryRadius),
		QueriesPerTick:     conf.QueriesPerTick,
		TickInterval:       conf.TickInterval,
		Seed:               conf.Seed,
		LogSummaryInterval: conf.LogSummaryInterval,
		FeatureFlags:       flags,
	})
	go sim.Run(ctx)

	var service http.ServeMux
	service.Handle("/health", lookuphttp.HandleWithCORS(http.HandlerFunc(lookuphttp.HandleHealthCheck)))
	service.Handle("/ready", lookuphttp.HandleWithCORS(lookuphttp.HandleReadyCheck(sim.Ready)))
	service.Handle("/version", lookuphttp.HandleWithCORS(lookuphttp.HandleVersion(version)))
	service.Handle("/debug/lookup", lookuphttp.HandleWithCORS(lookuphttp.HandleDebugLookup(sim.Snapshot)))

	flags.IfNotSet(featureflag.FlagDisableTreeStream, func() {
		service.Handle("/debug/lookup/stream", websocket.Server{
			Handler: lookuphttp.HandleDebugLookupStream(sim.Snapshot, conf.StreamInterval),
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", lookuphttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", lookuphttp.HandleReadyCheck(sim.Ready))

	logs.WithTag("version", version).
		WithTag("run_id", uuid.NewString()).
		WithTag("log_level", conf.LogLevel).
		WithTag("algorithm", conf.Algorithm).
		WithTag("entity_count", conf.EntityCount).
		Info("starting spatial lookup server")

	lookuphttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			lookuphttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func newAlgorithm(name string) (lookup.Algorithm, error) {
	switch name {
	case "naive":
		return &lookup.Naive{}, nil

	case "bvh":
		return lookup.NewBvh(), nil

	case "octree":
		return lookup.NewOctree(lookup.DefaultOctreeConfig()), nil

	default:
		return nil, errors.New("unknown lookup algorithm").
			WithTag("algorithm", name)
	}
}
