package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"

	"github.com/klauspost/pgzip"
)

// DownloadFile fetches url into destPath through a temp file and an atomic
// rename. With compress set the body is gzip-compressed on the way to disk.
// It returns the number of body bytes read.
func DownloadFile(ctx context.Context, client *http.Client, url, destPath string, compress bool) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}

	var n int64
	if compress {
		gz := pgzip.NewWriter(f)
		if err = gz.SetConcurrency(1<<20, runtime.NumCPU()); err == nil {
			n, err = io.Copy(gz, resp.Body)
		}
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	} else {
		n, err = io.Copy(f, resp.Body)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename failed: %w", err)
	}
	return n, nil
}
