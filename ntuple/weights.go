package ntuple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Weight file layout, little-endian:
//
//	uint32 table_count
//	table_count times: uint32 entry_count, entry_count float32
//
// Tables are written in pattern order.

// WeightFileError is returned when a weight file cannot be opened, read or written.
// Callers are expected to treat it as fatal configuration: it is never ignored.
type WeightFileError struct {
	Op   string
	Path string
	Err  error
}

func (e *WeightFileError) Error() string {
	return fmt.Sprintf("ntuple: %s weights %s: %v", e.Op, e.Path, e.Err)
}

func (e *WeightFileError) Unwrap() error { return e.Err }

// WriteTo serialises every table.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	var written int64
	if err := binary.Write(w, binary.LittleEndian, uint32(len(n.tables))); err != nil {
		return written, fmt.Errorf("write table count: %w", err)
	}
	written += 4
	for i, t := range n.tables {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(t))); err != nil {
			return written, fmt.Errorf("write table %d size: %w", i, err)
		}
		written += 4
		if err := binary.Write(w, binary.LittleEndian, t); err != nil {
			return written, fmt.Errorf("write table %d: %w", i, err)
		}
		written += int64(len(t)) * 4
	}
	return written, nil
}

// ReadFrom replaces every table with the contents of r. The file must hold
// exactly one table per pattern, each of TableSize entries. Weights are taken
// bit for bit, NaN and Inf included, so anything WriteTo produced loads back.
// On error the network is left unchanged.
func (n *Network) ReadFrom(r io.Reader) (int64, error) {
	var read int64
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return read, fmt.Errorf("read table count: %w", err)
	}
	read += 4
	if int(count) != len(n.tables) {
		return read, fmt.Errorf("file has %d tables, network has %d patterns", count, len(n.tables))
	}

	tables := make([][]float32, count)
	for i := range tables {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return read, fmt.Errorf("read table %d size: %w", i, err)
		}
		read += 4
		if size != TableSize {
			return read, fmt.Errorf("table %d has %d entries, want %d", i, size, TableSize)
		}
		t := make([]float32, size)
		if err := binary.Read(r, binary.LittleEndian, t); err != nil {
			return read, fmt.Errorf("read table %d: %w", i, err)
		}
		read += int64(size) * 4
		tables[i] = t
	}

	n.tables = tables
	return read, nil
}

// Load reads weights from path into n.
func (n *Network) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &WeightFileError{Op: "load", Path: path, Err: err}
	}
	defer f.Close()

	if _, err := n.ReadFrom(bufio.NewReaderSize(f, 1<<20)); err != nil {
		return &WeightFileError{Op: "load", Path: path, Err: err}
	}
	return nil
}

// Save writes n to path. The file is written next to its destination and
// renamed into place so readers never observe a partial file.
func (n *Network) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &WeightFileError{Op: "save", Path: path, Err: fmt.Errorf("create output dir: %w", err)}
		}
	}

	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &WeightFileError{Op: "save", Path: path, Err: err}
	}

	bw := bufio.NewWriterSize(f, 1<<20)
	_, werr := n.WriteTo(bw)
	if werr == nil {
		werr = bw.Flush()
	}
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmpPath)
		return &WeightFileError{Op: "save", Path: path, Err: werr}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &WeightFileError{Op: "save", Path: path, Err: fmt.Errorf("rename: %w", err)}
	}
	return nil
}
