package main

import (
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bft-labs/termstream/internal/adapters/metrics"
	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/source"
	"github.com/bft-labs/termstream/pkg/log"
	"github.com/bft-labs/termstream/pkg/streaming"
)

type uploadFlags struct {
	input      string
	follow     bool
	name       string
	id         string
	blob       string
	token      bool
	initConfig string
	meta       map[string]string
}

func newUploadCmd(a *app) *cobra.Command {
	var fl uploadFlags
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Stream terms from a JSONL file into the store and print the object URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			if err := a.cfg.RequireStore(); err != nil {
				return err
			}
			uri, err := runUpload(cmd.Context(), a, fl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fl.input, "input", "i", "-", "JSONL terms file, - for stdin")
	f.BoolVar(&fl.follow, "follow", false, "keep reading the input as it grows until an {\"end\":true} line")
	f.StringVar(&fl.name, "name", streaming.DefaultName, "problem name")
	f.StringVar(&fl.id, "id", "", "problem id (default: random UUID)")
	f.StringVar(&fl.blob, "blob", "", "blob name (default: problem id); requires --container")
	f.BoolVar(&fl.token, "token", false, "treat the container as caller-supplied storage and return a URI with an access token")
	f.StringVar(&fl.initConfig, "init-config", "", "JSON file with the initial configuration, e.g. {\"0\": 1}")
	f.StringToStringVar(&fl.meta, "meta", nil, "extra blob metadata, key=value")
	return cmd
}

func runUpload(ctx context.Context, a *app, fl uploadFlags) (string, error) {
	if fl.follow && fl.input == "-" {
		return "", fmt.Errorf("%w: --follow needs a file input", domain.ErrInvalidConfig)
	}
	if fl.blob != "" && a.cfg.Container == "" {
		return "", fmt.Errorf("%w: --blob requires --container", domain.ErrInvalidConfig)
	}

	logger := log.NewZerologAdapterWithLogger(a.log)

	store, err := openStore(ctx, a.cfg, logger)
	if err != nil {
		return "", err
	}
	defer store.close()

	reg := prometheus.NewRegistry()
	observer, err := metrics.NewObserver(reg)
	if err != nil {
		return "", err
	}
	if a.cfg.MetricsFile != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, reg); err != nil {
				a.log.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("write metrics")
			}
		}()
	}

	cfg := a.cfg.StreamingConfig()
	cfg.Name = fl.name
	cfg.Metadata = fl.meta
	if fl.initConfig != "" {
		if cfg.InitialConfiguration, err = readInitConfig(fl.initConfig); err != nil {
			return "", err
		}
	}

	opts := []streaming.Option{
		streaming.WithLogger(logger),
		streaming.WithEventHandler(observer),
	}
	if fl.id != "" {
		opts = append(opts, streaming.WithID(fl.id))
	}
	if fl.token {
		opts = append(opts, streaming.WithResolver(streaming.ExplicitStorage(a.cfg.Container)))
	}

	p, err := streaming.NewAsync(ctx, store, cfg, opts...)
	if err != nil {
		return "", err
	}
	if fl.blob != "" {
		if err := p.SetUploadTarget(a.cfg.Container, fl.blob); err != nil {
			return "", err
		}
	}

	sink := func(terms []domain.Term) error { return p.AddTerms(ctx, terms) }
	n, err := feed(ctx, a, fl, sink)
	if err != nil {
		return "", fmt.Errorf("read terms after %d: %w", n, err)
	}

	uri, err := p.Upload(ctx)
	if err != nil {
		return "", err
	}
	if err := p.Wait(); err != nil {
		return "", err
	}

	stats := p.Stats()
	a.log.Info().
		Str("problem_id", p.ID()).
		Int("terms", stats.NumTerms).
		Int("max_coupling", stats.MaxCoupling).
		Msg("upload complete")
	return uri, nil
}

func feed(ctx context.Context, a *app, fl uploadFlags, sink source.Sink) (int, error) {
	if fl.follow {
		logger := log.NewZerologAdapterWithLogger(a.log)
		return source.NewFollower(fl.input, a.cfg.BatchSize, logger).Run(ctx, sink)
	}

	var r io.Reader = os.Stdin
	if fl.input != "-" {
		f, err := os.Open(fl.input)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		r = f
	}
	return source.ReadAll(ctx, r, a.cfg.BatchSize, sink)
}

func readInitConfig(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read initial configuration: %w", err)
	}
	var cfg map[string]int
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: initial configuration %s: %v", domain.ErrInvalidConfig, path, err)
	}
	return cfg, nil
}
