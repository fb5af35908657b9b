package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// loadJSON reads a species array export, transparently decoding
// zstd-compressed snapshots.
func loadJSON(path string) ([]Species, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd catalog: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var species []Species
	if err := json.NewDecoder(r).Decode(&species); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return species, nil
}
