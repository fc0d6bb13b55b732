package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

type exporter interface {
	Export(ctx context.Context) (map[string][]byte, error)
}

type uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Service snapshots the local collections to object storage.
type Service struct {
	source exporter
	dest   uploader
	prefix string
	now    func() time.Time
}

type ServiceDeps struct {
	Source exporter
	Dest   uploader
	Prefix string
	Clock  func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{source: deps.Source, dest: deps.Dest, prefix: deps.Prefix, now: deps.Clock}
	if s.prefix == "" {
		s.prefix = "snapshots"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// BackupOnce uploads every collection under a timestamped prefix and returns
// the object locations in name order.
func (s *Service) BackupOnce(ctx context.Context) ([]string, error) {
	files, err := s.source.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("export collections: %w", err)
	}
	stamp := s.now().UTC().Format("20060102T150405Z")

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	locations := make([]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i := i
		key := path.Join(s.prefix, stamp, name)
		body := files[name]
		g.Go(func() error {
			loc, err := s.dest.Upload(gctx, key, bytes.NewReader(body), "application/json")
			if err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			locations[i] = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return locations, nil
}

// Run takes a snapshot every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			locs, err := s.BackupOnce(ctx)
			if err != nil {
				slog.Warn("backup failed", "err", err)
				continue
			}
			slog.Info("backup uploaded", "objects", len(locs))
		}
	}
}
