package archive

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/cenkalti/backoff/v4"

	"archivist/internal/logging"
)

// FetchOptions controls how files are written during a fetch.
type FetchOptions struct {
	SkipExisting       bool
	VerifyChecksum     bool
	Retries            int
	TimeoutSeconds     int
	Flatten            bool
	PreserveTimestamps bool
}

// Fetch downloads the given files into destDir. Files nest under an
// identifier directory unless Flatten is set. Each file is retried with
// exponential backoff up to Retries times before the fetch fails.
func (c *Client) Fetch(ctx context.Context, identifier string, files []ItemFile, destDir string, opts FetchOptions) error {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(destDir, file.Name)
		if !opts.Flatten {
			target = filepath.Join(destDir, identifier, file.Name)
		}
		if opts.SkipExisting {
			if _, err := os.Stat(target); err == nil {
				c.logger.Debug("skipping existing file",
					logging.String("identifier", identifier),
					logging.String("file", file.Name))
				continue
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("prepare directory for %q: %w", file.Name, err)
		}
		if err := c.fetchFile(ctx, identifier, file, target, opts); err != nil {
			return fmt.Errorf("download %q: %w", file.Name, err)
		}
	}
	return nil
}

func (c *Client) fetchFile(ctx context.Context, identifier string, file ItemFile, target string, opts FetchOptions) error {
	fileCtx := ctx
	if opts.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	c.logger.Info("downloading file",
		logging.String("identifier", identifier),
		logging.String("file", file.Name))

	operation := func() error {
		if err := c.downloadOnce(fileCtx, identifier, file, target, opts); err != nil {
			if fileCtx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Warn("download attempt failed",
				logging.String("file", file.Name),
				logging.Error(err))
			return err
		}
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(opts.Retries, 0))),
		fileCtx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}

	if opts.PreserveTimestamps && file.Mtime != "" {
		if seconds, err := strconv.ParseInt(file.Mtime, 10, 64); err == nil {
			mtime := time.Unix(seconds, 0)
			if err := os.Chtimes(target, mtime, mtime); err != nil {
				c.logger.Warn("preserve timestamp failed",
					logging.String("file", file.Name),
					logging.Error(err))
			}
		}
	}
	return nil
}

func (c *Client) downloadOnce(ctx context.Context, identifier string, file ItemFile, target string, opts FetchOptions) error {
	req, err := grab.NewRequest(target, c.FileURL(identifier, file.Name))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	if opts.VerifyChecksum && file.MD5 != "" {
		sum, err := hex.DecodeString(file.MD5)
		if err != nil {
			return fmt.Errorf("bad md5 for %q: %w", file.Name, err)
		}
		req.SetChecksum(md5.New(), sum, true)
	}

	resp := c.grabClient.Do(req)
	if err := resp.Err(); err != nil {
		return err
	}
	return nil
}
