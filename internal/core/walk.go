package core

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Walk streams video paths under the given roots. Roots that are plain
// files are emitted directly when the extension matches; unreadable
// directories are logged and skipped so one bad mount never kills a scan.
func Walk(ctx context.Context, roots []string, extensions []string, logger *zap.Logger) <-chan string {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for _, root := range roots {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
					if d != nil && d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}
				if d.IsDir() {
					return nil
				}
				if _, ok := exts[strings.ToLower(filepath.Ext(path))]; !ok {
					return nil
				}
				select {
				case out <- path:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("Walk failed", zap.String("root", root), zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}
