package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/jeongseonghan/waveform/internal/audio"
	"github.com/jeongseonghan/waveform/internal/config"
	"github.com/jeongseonghan/waveform/internal/metrics"
	"github.com/jeongseonghan/waveform/internal/scenario"
	"github.com/jeongseonghan/waveform/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the process exit code so deferred cleanup always happens.
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("waveform", flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "YAML config file (supports !include)")
	sets := fs.StringArray("set", nil, "Override a config value, key.path=value (repeatable)")
	listDevices := fs.Bool("list-devices", false, "List audio devices and exit")
	serve := fs.Bool("serve", false, "Run the monitor on monitor.addr instead of a single scenario")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: waveform [flags] <scenario>\n\nScenarios: %v\n\nFlags:\n", scenario.Names())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listDevices {
		devices, err := audio.ListDevices()
		if err != nil {
			log.Errorf("Failed to list devices: %v", err)
			return 1
		}
		audio.PrintDevices(stdout, devices)
		return 0
	}

	overrides, err := config.ParseOverrides(*sets)
	if err != nil {
		log.Error(err)
		return 2
	}
	cfg, err := config.Load(*configPath, overrides...)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		return 1
	}
	closer, err := cfg.Logging.Apply(log.StandardLogger())
	if err != nil {
		log.Errorf("Failed to set up logging: %v", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := runMonitor(ctx, cfg.Monitor.Addr, *configPath, overrides); err != nil {
			log.Errorf("Server error: %v", err)
			return 1
		}
		return 0
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rep, err := scenario.NewRunner(cfg, scenario.WithSink(m), scenario.WithObserver(m)).
		Run(ctx, fs.Arg(0))
	if err != nil {
		log.WithError(err).WithField("run_id", rep.RunID).Error("run failed")
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		log.WithError(err).Error("write report")
		return 1
	}
	return 0
}

func runMonitor(ctx context.Context, addr, configPath string, base []config.Override) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := server.NewWSHub()
	log.AddHook(hub)

	load := func(overrides ...config.Override) (*config.Config, error) {
		return config.Load(configPath, append(append([]config.Override{}, base...), overrides...)...)
	}
	handlers := server.NewHandlers(ctx, load, hub, metrics.New(reg))
	srv := server.NewServer(addr, handlers, reg)

	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("monitor stopped")
	return nil
}
