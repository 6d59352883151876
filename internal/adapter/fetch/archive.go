package fetch

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
)

// extractGzip decompresses a gzip body into a reader. A corrupt container is
// a structural failure of the whole stream.
func extractGzip(body []byte) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open gzip container: %w", err)
	}
	return gz, nil
}

// extractZipCSV opens a zip body and returns a reader over its first .csv
// member, which is how both the flight and registry archives are laid out.
func extractZipCSV(body []byte) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open zip container: %w", err)
	}
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open zip member %s: %w", f.Name, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("zip container has no csv member")
}
