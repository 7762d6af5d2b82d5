package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// DefaultFileStem is the base name of exported report files.
const DefaultFileStem = "listing_comparison_results"

// WriteFiles writes r to dir once per format, concurrently, and returns the written paths
// in format order. The directory is created if needed.
func WriteFiles(ctx context.Context, r *Report, dir string, formats ...Format) ([]string, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("no report formats requested")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	paths := make([]string, len(formats))
	g, gCtx := errgroup.WithContext(ctx)

	for i, format := range formats {
		sink, err := SinkFor(format)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, DefaultFileStem+"."+string(format))
		paths[i] = path

		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return writeFile(path, sink, r)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeFile(path string, sink Sink, r *Report) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := sink.Write(file, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
