package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/termstream/internal/adapters/fs"
	"github.com/bft-labs/termstream/internal/adapters/gcs"
	blockblob "github.com/bft-labs/termstream/internal/adapters/http"
	"github.com/bft-labs/termstream/internal/adapters/memory"
	"github.com/bft-labs/termstream/internal/adapters/minio"
	"github.com/bft-labs/termstream/internal/adapters/throttle"
	"github.com/bft-labs/termstream/internal/cliconfig"
	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

const httpTimeout = 60 * time.Second

// openedStore is a BlobStore plus the means to map URIs it issued back to
// destinations.
type openedStore struct {
	ports.BlobStore
	parseURI func(raw string) (ports.Destination, error)
	close    func() error
}

// openStore builds the store named by cfg.Store, rate limited when
// cfg.MaxUploadRate is set.
func openStore(ctx context.Context, cfg cliconfig.Config, logger ports.Logger) (*openedStore, error) {
	u, err := url.Parse(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("%w: store url: %v", domain.ErrInvalidConfig, err)
	}
	q := u.Query()

	s := &openedStore{close: func() error { return nil }}
	switch u.Scheme {
	case "file":
		st := fs.NewStore(u.Path, logger)
		s.BlobStore = st
		s.parseURI = func(raw string) (ports.Destination, error) { return fs.ParseURI(st.Root(), raw) }

	case "mem":
		s.BlobStore = memory.NewStore()
		s.parseURI = memory.ParseURI

	case "s3":
		secure, err := boolParam(q, "secure", true)
		if err != nil {
			return nil, err
		}
		mcfg := minio.Config{
			Endpoint:  q.Get("endpoint"),
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Secure:    secure,
			Bucket:    u.Host,
		}
		if mcfg.Region == "" {
			mcfg.Region = q.Get("region")
		}
		st, err := minio.NewStore(mcfg, logger)
		if err != nil {
			return nil, err
		}
		s.BlobStore = st
		s.parseURI = func(raw string) (ports.Destination, error) { return minio.ParseURI(mcfg, raw) }

	case "gs":
		anonymous, err := boolParam(q, "anonymous", false)
		if err != nil {
			return nil, err
		}
		gcfg := gcs.Config{
			Bucket:          u.Host,
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        q.Get("endpoint"),
			Anonymous:       anonymous,
			GoogleAccessID:  q.Get("access_id"),
		}
		st, err := gcs.NewStore(ctx, gcfg, logger)
		if err != nil {
			return nil, err
		}
		s.BlobStore = st
		s.parseURI = pathParser(u.Host)
		s.close = st.Close

	case "http", "https":
		create, err := boolParam(q, "create", false)
		if err != nil {
			return nil, err
		}
		base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
		st, err := blockblob.NewBlockStore(&http.Client{Timeout: httpTimeout}, blockblob.Config{
			BaseURL:         base.String(),
			SASToken:        cfg.SASToken,
			CreateContainer: create,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.BlobStore = st
		s.parseURI = pathParser(strings.Trim(u.Path, "/"))

	default:
		return nil, fmt.Errorf("%w: unsupported store scheme %q", domain.ErrInvalidConfig, u.Scheme)
	}

	s.BlobStore = throttle.NewStore(s.BlobStore, cfg.MaxUploadRate)
	return s, nil
}

// pathParser maps a URI whose path is [/prefix]/container/blob to a
// destination. The query, which may hold a token, is ignored.
func pathParser(prefix string) func(string) (ports.Destination, error) {
	return func(raw string) (ports.Destination, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return ports.Destination{}, err
		}
		p := strings.TrimPrefix(u.Path, "/")
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				return ports.Destination{}, fmt.Errorf("%w: %s is not under %s", domain.ErrInvalidConfig, raw, prefix)
			}
			p = strings.TrimPrefix(p, prefix+"/")
		}
		container, blob, ok := strings.Cut(p, "/")
		if !ok || container == "" || blob == "" {
			return ports.Destination{}, fmt.Errorf("%w: no object in %s", domain.ErrInvalidConfig, raw)
		}
		return ports.Destination{Container: container, Blob: blob}, nil
	}
}

func boolParam(q url.Values, key string, def bool) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: store parameter %s: %v", domain.ErrInvalidConfig, key, err)
	}
	return b, nil
}
