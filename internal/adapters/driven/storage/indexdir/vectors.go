package indexdir

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// vectorMagic identifies a vectors.bin file.
var vectorMagic = [4]byte{'R', 'C', 'V', '1'}

// vectorHeader precedes the float32 rows.
type vectorHeader struct {
	Magic     [4]byte
	Dimension uint32
	Count     uint32
}

var errBadVectorFile = errors.New("not a vectors file")

// writeVectors writes rows of equal dimension to path.
func writeVectors(path string, dimension int, rows [][]float32) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating vectors file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := vectorHeader{Magic: vectorMagic, Dimension: uint32(dimension), Count: uint32(len(rows))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("writing vectors header: %w", err)
	}

	buf := make([]byte, dimension*4)
	for i, row := range rows {
		if len(row) != dimension {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(row), dimension)
		}
		for j, v := range row {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("writing vector %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing vectors: %w", err)
	}
	return f.Sync()
}

// readVectors reads every row from path.
func readVectors(path string) (dimension int, rows [][]float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("opening vectors file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header vectorHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, fmt.Errorf("reading vectors header: %w", err)
	}
	if header.Magic != vectorMagic {
		return 0, nil, errBadVectorFile
	}

	info, err := f.Stat()
	if err != nil {
		return 0, nil, fmt.Errorf("stat vectors file: %w", err)
	}
	want := int64(binary.Size(header)) + int64(header.Count)*int64(header.Dimension)*4
	if info.Size() != want {
		return 0, nil, fmt.Errorf("%w: header declares %d vectors of %d dimensions (%d bytes), file has %d bytes",
			errBadVectorFile, header.Count, header.Dimension, want, info.Size())
	}

	dimension = int(header.Dimension)
	buf := make([]byte, dimension*4)
	rows = make([][]float32, header.Count)
	for i := range rows {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, fmt.Errorf("reading vector %d: %w", i, err)
		}
		row := make([]float32, dimension)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		rows[i] = row
	}
	return dimension, rows, nil
}
