package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/termstream/internal/cliconfig"
)

const longHelp = `Stream optimization problems to object storage while they are built.

Terms are read as JSON Lines ({"c": 1.5, "ids": [0, 3]}), rendered into a
cost function document and appended to the store chunk by chunk, so the
whole problem is never held in memory.

Stores:
  file:///var/problems                  local directory
  s3://bucket?endpoint=host:9000        S3-compatible (minio)
  gs://bucket                           Google Cloud Storage
  https://account.blob.example.net      block blob REST endpoint
  mem://                                in-process, discarded on exit`

var exampleUsage = strings.TrimSpace(`
  termstream upload --store file:///tmp/problems --input terms.jsonl
  generate-terms | termstream upload --store gs://problems --type pubo --input -
  termstream upload --store s3://problems?endpoint=localhost:9000 --input live.jsonl --follow
  termstream download --store file:///tmp/problems --uri file:///tmp/problems/p1/p1 -o p1.json
  termstream inspect --input terms.jsonl --evaluate config.json
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the configuration shared by every subcommand.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig(), log: cliconfig.Logger("info")}

	root := &cobra.Command{
		Use:           "termstream",
		Short:         "Stream optimization problems to object storage while they are built",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.termstream/config.toml)")
	f.StringVar(&a.cfg.Store, "store", a.cfg.Store, "object store URL")
	f.StringVar(&a.cfg.Container, "container", a.cfg.Container, "container for uploaded problems (default: problem id)")
	f.StringVar(&a.cfg.ProblemType, "type", a.cfg.ProblemType, "problem type: ising or pubo")
	f.BoolVar(&a.cfg.Compress, "compress", a.cfg.Compress, "gzip the uploaded document")
	f.IntVar(&a.cfg.SizeThreshold, "size-threshold", a.cfg.SizeThreshold, "flush a chunk once this many bytes are buffered")
	f.IntVar(&a.cfg.TermThreshold, "term-threshold", a.cfg.TermThreshold, "flush a chunk once this many terms are pending")
	f.DurationVar(&a.cfg.QueueWait, "queue-wait", a.cfg.QueueWait, "worker wait per queue poll")
	f.IntVar(&a.cfg.BatchSize, "batch-size", a.cfg.BatchSize, "terms read per batch")
	f.IntVar(&a.cfg.MaxUploadRate, "max-upload-rate", a.cfg.MaxUploadRate, "upload bytes per second (0 = unlimited)")
	f.StringVar(&a.cfg.AccessKey, "access-key", a.cfg.AccessKey, "S3 access key")
	f.StringVar(&a.cfg.SecretKey, "secret-key", a.cfg.SecretKey, "S3 secret key")
	f.StringVar(&a.cfg.Region, "region", a.cfg.Region, "S3 region")
	f.StringVar(&a.cfg.CredentialsFile, "credentials-file", a.cfg.CredentialsFile, "GCS service account JSON")
	f.StringVar(&a.cfg.SASToken, "sas-token", a.cfg.SASToken, "shared access signature for block blob stores")
	f.StringVar(&a.cfg.MetricsFile, "metrics-file", a.cfg.MetricsFile, "write Prometheus metrics to this file on exit")
	f.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(newUploadCmd(a), newDownloadCmd(a), newInspectCmd(a))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		a.log.Error().Err(err).Msg("termstream")
		stop()
		os.Exit(1)
	}
}

// load applies the config file and TERMSTREAM_* environment under the
// flags set on cmd, then validates.
func (a *app) load(cmd *cobra.Command) error {
	// Build set of changed flags
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.log = cliconfig.Logger(a.cfg.LogLevel)
	a.log.Debug().Interface("config", a.cfg.Masked()).Msg("configuration")
	return nil
}
