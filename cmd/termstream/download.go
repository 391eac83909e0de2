package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
	"github.com/bft-labs/termstream/pkg/log"
	"github.com/bft-labs/termstream/pkg/streaming"
)

type downloadFlags struct {
	uri    string
	blob   string
	name   string
	output string
}

func newDownloadCmd(a *app) *cobra.Command {
	var fl downloadFlags
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch an uploaded problem and write it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			if err := a.cfg.RequireStore(); err != nil {
				return err
			}
			p, err := fetchProblem(cmd.Context(), a, fl.uri, fl.blob, fl.name)
			if err != nil {
				return err
			}
			data, err := p.Serialize()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), fl.output, data)
		},
	}

	f := cmd.Flags()
	f.StringVar(&fl.uri, "uri", "", "object URI printed by upload")
	f.StringVar(&fl.blob, "blob", "", "blob name inside --container, instead of --uri")
	f.StringVar(&fl.name, "name", streaming.DefaultName, "name recorded in the output")
	f.StringVarP(&fl.output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

// fetchProblem downloads and decodes the object named by uri, or by the
// configured container and blob.
func fetchProblem(ctx context.Context, a *app, uri, blob, name string) (*domain.Problem, error) {
	store, err := openStore(ctx, a.cfg, log.NewZerologAdapterWithLogger(a.log))
	if err != nil {
		return nil, err
	}
	defer store.close()

	var dst ports.Destination
	switch {
	case uri != "":
		if dst, err = store.parseURI(uri); err != nil {
			return nil, err
		}
	case blob != "" && a.cfg.Container != "":
		dst = ports.Destination{Container: a.cfg.Container, Blob: blob}
	default:
		return nil, fmt.Errorf("%w: --uri or --container with --blob is required", domain.ErrInvalidConfig)
	}

	data, err := store.Download(ctx, dst)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", dst, err)
	}
	return domain.Deserialize(data, name)
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := fmt.Fprintln(stdout, string(data))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
