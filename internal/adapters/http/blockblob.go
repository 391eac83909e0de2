// Package http provides a BlobStore for block-blob REST services.
//
// Each appended chunk is staged as an uncommitted block; Commit puts the
// ordered block list together with content settings and x-ms-meta-*
// metadata headers. Requests are authorised either by a shared access
// signature appended to every URL or by a bearer token.
package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

const apiVersion = "2021-08-06"

// Config configures a BlockStore.
type Config struct {
	// BaseURL is the account endpoint, e.g. https://acct.blob.example.net.
	BaseURL string

	// SASToken is appended to every request and to token-bearing URIs.
	SASToken string

	// BearerToken is sent as an Authorization header when set.
	BearerToken string

	// CreateContainer issues a create-container request before the first
	// block of every object. An existing container is not an error.
	CreateContainer bool
}

// BlockStore implements ports.BlobStore over HTTP.
type BlockStore struct {
	client ports.HTTPClient
	cfg    Config
	logger ports.Logger
}

// NewBlockStore creates a store. client is usually *http.Client.
func NewBlockStore(client ports.HTTPClient, cfg Config, logger ports.Logger) (*BlockStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", domain.ErrInvalidConfig)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", domain.ErrInvalidConfig, err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.SASToken = strings.TrimPrefix(cfg.SASToken, "?")
	return &BlockStore{client: client, cfg: cfg, logger: logger}, nil
}

func (s *BlockStore) objectURL(container, blob string, query url.Values, withToken bool) string {
	u := s.cfg.BaseURL + "/" + url.PathEscape(container)
	if blob != "" {
		u += "/" + url.PathEscape(blob)
	}
	q := query.Encode()
	if withToken && s.cfg.SASToken != "" {
		if q != "" {
			q += "&"
		}
		q += s.cfg.SASToken
	}
	if q != "" {
		u += "?" + q
	}
	return u
}

func (s *BlockStore) do(ctx context.Context, method, target string, body []byte, header http.Header, accept ...int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = int64(len(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("x-ms-version", apiVersion)
	if s.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.BearerToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	for _, code := range accept {
		if resp.StatusCode == code {
			return resp, nil
		}
	}
	if resp.StatusCode/100 == 2 && len(accept) == 0 {
		return resp, nil
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, strings.TrimSpace(string(respBody)))
	}
	return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
}

// Create returns a sink staging blocks under dst.
func (s *BlockStore) Create(ctx context.Context, dst ports.Destination, settings ports.ContentSettings) (ports.BlobSink, error) {
	if dst.Container == "" || dst.Blob == "" {
		return nil, fmt.Errorf("%w: destination %q", domain.ErrInvalidConfig, dst)
	}
	if s.cfg.CreateContainer {
		target := s.objectURL(dst.Container, "", url.Values{"restype": {"container"}}, true)
		resp, err := s.do(ctx, http.MethodPut, target, nil, nil, http.StatusCreated, http.StatusConflict)
		if err != nil {
			return nil, fmt.Errorf("create container: %w", err)
		}
		resp.Body.Close()
	}
	return &blockSink{store: s, dst: dst, settings: settings}, nil
}

// Download fetches a committed blob.
func (s *BlockStore) Download(ctx context.Context, dst ports.Destination) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, s.objectURL(dst.Container, dst.Blob, nil, true), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// blockID returns the fixed-width id of the n-th block.
func blockID(n int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%08d", n)))
}

type blockList struct {
	XMLName xml.Name `xml:"BlockList"`
	Latest  []string `xml:"Latest"`
}

type blockSink struct {
	store    *BlockStore
	dst      ports.Destination
	settings ports.ContentSettings
	blocks   []string
	done     bool
}

func (k *blockSink) Append(ctx context.Context, p []byte) error {
	if k.done {
		return domain.ErrSinkClosed
	}
	id := blockID(len(k.blocks))
	q := url.Values{"comp": {"block"}, "blockid": {id}}
	resp, err := k.store.do(ctx, http.MethodPut, k.store.objectURL(k.dst.Container, k.dst.Blob, q, true), p, nil)
	if err != nil {
		return fmt.Errorf("stage block %d: %w", len(k.blocks), err)
	}
	resp.Body.Close()
	k.blocks = append(k.blocks, id)
	return nil
}

func (k *blockSink) Commit(ctx context.Context, metadata map[string]string) (ports.ObjectHandle, error) {
	if k.done {
		return nil, domain.ErrSinkClosed
	}
	k.done = true

	body, err := xml.Marshal(blockList{Latest: k.blocks})
	if err != nil {
		return nil, fmt.Errorf("marshal block list: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	header := http.Header{}
	header.Set("Content-Type", "application/xml")
	if k.settings.ContentType != "" {
		header.Set("x-ms-blob-content-type", k.settings.ContentType)
	}
	if k.settings.ContentEncoding != "" {
		header.Set("x-ms-blob-content-encoding", k.settings.ContentEncoding)
	}
	for key, v := range metadata {
		header.Set("x-ms-meta-"+key, v)
	}

	q := url.Values{"comp": {"blocklist"}}
	resp, err := k.store.do(ctx, http.MethodPut, k.store.objectURL(k.dst.Container, k.dst.Blob, q, true), body, header)
	if err != nil {
		return nil, fmt.Errorf("put block list: %w", err)
	}
	resp.Body.Close()

	k.store.logger.Debug("block list committed",
		ports.String("container", k.dst.Container),
		ports.String("blob", k.dst.Blob),
		ports.Int("blocks", len(k.blocks)),
	)
	return &handle{store: k.store, dst: k.dst}, nil
}

// Abort drops the sink. Uncommitted blocks expire on the service side.
func (k *blockSink) Abort(ctx context.Context) error {
	k.done = true
	k.blocks = nil
	return nil
}

type handle struct {
	store *BlockStore
	dst   ports.Destination
}

func (h *handle) Destination() ports.Destination { return h.dst }

func (h *handle) Committed() bool { return true }

// URI returns the blob URL, carrying the SAS token when withToken is set.
func (h *handle) URI(ctx context.Context, withToken bool) (string, error) {
	return h.store.objectURL(h.dst.Container, h.dst.Blob, nil, withToken), nil
}
