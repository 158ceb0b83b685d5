package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ListFiles returns the finalized <prefix>_*.parquet files directly in dir,
// oldest first by name.
func ListFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"_") || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// Compact merges every finalized <prefix>_*.parquet file in dir into one new
// file and then removes the inputs. Readers may briefly see the rows twice,
// never zero times. It does nothing when dir holds fewer than two files.
func Compact[T any](dir, prefix, schema string) (outPath string, rows int, err error) {
	inputs, err := ListFiles(dir, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("list %s: %w", dir, err)
	}
	if len(inputs) < 2 {
		return "", 0, nil
	}

	w, err := NewBatchWriter[T](dir, prefix, schema)
	if err != nil {
		return "", 0, err
	}
	for _, in := range inputs {
		if err := copyRows(w, in); err != nil {
			_, _, _, _ = w.Finalize()
			_ = os.Remove(w.OutPath())
			return "", 0, fmt.Errorf("compact %s: %w", in, err)
		}
	}

	outPath, rows, _, err = w.Finalize()
	if err != nil {
		return "", 0, err
	}
	for _, in := range inputs {
		if err := os.Remove(in); err != nil {
			return outPath, rows, fmt.Errorf("remove %s: %w", in, err)
		}
	}
	return outPath, rows, nil
}

func copyRows[T any](w *BatchWriter[T], path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	buf := make([]T, 512)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if err := w.WriteRows(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
