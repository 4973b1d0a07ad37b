// Command psserve serves streaming recognition over websockets.
//
// Settings come from PSSERVE_* environment variables, optionally read from
// a .env file. Decoder options are read from PSSERVE_CONFIG and then from
// SPHINX_<OPTION> variables.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/decoder"
	"github.com/ieee0824/sphinx-go/internal/logging"
	"github.com/ieee0824/sphinx-go/internal/server"
)

const environmentPrefix = "PSSERVE_"

type settings struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Config   string `env:"CONFIG"`

	HMM  string `env:"HMM"`
	Dict string `env:"DICT"`
	JSGF string `env:"JSGF"`
	FSG  string `env:"FSG"`
}

func main() {
	_ = godotenv.Load()

	var s settings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: environmentPrefix}); err != nil {
		logging.New("info", "psserve").Fatal("failed to parse settings", zap.Error(err))
	}
	log := logging.New(s.LogLevel, "psserve")
	defer log.Sync()

	cfg, err := decoderConfig(s)
	if err != nil {
		log.Fatal("invalid decoder options", zap.Error(err))
	}
	models, err := decoder.LoadModels(cfg)
	if err != nil {
		log.Fatal("failed to load models", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := server.New(server.Options{
		Config:   cfg,
		Models:   models,
		Metrics:  decoder.NewMetrics(reg),
		Gatherer: reg,
		Logger:   log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx, s.Addr); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("shut down")
}

// decoderConfig builds the decoder options: the config file, then the
// SPHINX_ environment, then the model paths from the settings.
func decoderConfig(s settings) (*config.Config, error) {
	cfg := config.Default()
	if s.Config != "" {
		if err := cfg.LoadFile(s.Config); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv("SPHINX"); err != nil {
		return nil, err
	}
	for name, v := range map[string]string{"hmm": s.HMM, "dict": s.Dict, "jsgf": s.JSGF, "fsg": s.FSG} {
		if v == "" {
			continue
		}
		if err := cfg.Set(name, v); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
