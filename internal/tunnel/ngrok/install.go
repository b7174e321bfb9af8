package ngrok

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/kofuk/amcs/internal/retry"
)

const downloadURLFormat = "https://bin.equinox.io/c/bNyj1mQVY4c/ngrok-v3-stable-%s-%s.%s"

var errBinaryNotInArchive = errors.New("ngrok binary not found in archive")

// DefaultDownloadURL returns the URL of the stable agent archive for the
// platform.
func DefaultDownloadURL(goos, goarch string) string {
	ext := "tgz"
	if goos == "windows" || goos == "darwin" {
		ext = "zip"
	}
	return fmt.Sprintf(downloadURLFormat, goos, goarch, ext)
}

func (a *Agent) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.downloadURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download failed: %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

func isBinaryEntry(name string) bool {
	base := path.Base(name)
	return base == "ngrok" || base == "ngrok.exe"
}

func extractFromZip(data []byte) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isBinaryEntry(f.Name) {
			continue
		}
		return f.Open()
	}

	return nil, errBinaryNotInArchive
}

func extractFromTarGz(data []byte) (io.ReadCloser, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	tr := tar.NewReader(gzr)
	for {
		th, err := tr.Next()
		if err != nil {
			gzr.Close()
			if err == io.EOF {
				return nil, errBinaryNotInArchive
			}
			return nil, err
		}

		if th.Typeflag == tar.TypeReg && isBinaryEntry(th.Name) {
			return struct {
				io.Reader
				io.Closer
			}{tr, gzr}, nil
		}
	}
}

func extractBinary(archiveURL string, data []byte) (io.ReadCloser, error) {
	if strings.HasSuffix(archiveURL, ".zip") {
		return extractFromZip(data)
	}
	return extractFromTarGz(data)
}

// writeExecutable atomically places content at dest with mode 0755.
func writeExecutable(dest string, content io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".ngrok-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dest)
}

func (a *Agent) install(ctx context.Context) error {
	data, err := retry.Retry(ctx, func() ([]byte, error) {
		return a.download(ctx)
	}, 2*time.Minute)
	if err != nil {
		return err
	}

	bin, err := extractBinary(a.downloadURL, data)
	if err != nil {
		return fmt.Errorf("unable to extract %s: %w", a.downloadURL, err)
	}
	defer bin.Close()

	return writeExecutable(a.BundledPath(), bin)
}
