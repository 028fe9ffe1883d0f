package tractography

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"niwidgets/internal/models"
)

const tckMagic = "mrtrix tracks"

// ReadTCK reads an MRtrix track file with float32 data stored in the same file
func ReadTCK(r io.Reader) (*models.Tractogram, error) {
	br := bufio.NewReader(r)

	header, consumed, err := readTCKHeader(br)
	if err != nil {
		return nil, err
	}

	var order binary.ByteOrder
	switch header["datatype"] {
	case "Float32LE":
		order = binary.LittleEndian
	case "Float32BE":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unsupported tck datatype %q", header["datatype"])
	}

	file := strings.Fields(header["file"])
	if len(file) != 2 || file[0] != "." {
		return nil, fmt.Errorf("tck data must follow the header in the same file, got file: %q", header["file"])
	}
	offset, err := strconv.Atoi(file[1])
	if err != nil || offset < consumed {
		return nil, fmt.Errorf("invalid tck data offset %q", file[1])
	}
	if _, err := br.Discard(offset - consumed); err != nil {
		return nil, fmt.Errorf("error seeking to tck data: %w", err)
	}

	t := &models.Tractogram{Format: "tck"}
	var current models.Streamline
	var triple [3]float32
	for {
		if err := binary.Read(br, order, &triple); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading tck data: %w", err)
		}

		x := float64(triple[0])
		switch {
		case math.IsInf(x, 0):
			if len(current) > 0 {
				t.Streamlines = append(t.Streamlines, current)
			}
			return t, nil
		case math.IsNaN(x):
			t.Streamlines = append(t.Streamlines, current)
			current = nil
		default:
			current = append(current, r3.Vec{X: x, Y: float64(triple[1]), Z: float64(triple[2])})
		}
	}

	if len(current) > 0 {
		t.Streamlines = append(t.Streamlines, current)
	}
	return t, nil
}

// readTCKHeader parses "key: value" lines up to END and returns them with
// the number of bytes consumed
func readTCKHeader(br *bufio.Reader) (map[string]string, int, error) {
	consumed := 0
	line, err := br.ReadString('\n')
	consumed += len(line)
	if err != nil || strings.TrimSpace(line) != tckMagic {
		return nil, 0, fmt.Errorf("missing %q magic: %w", tckMagic, ErrUnsupportedFormat)
	}

	header := map[string]string{}
	for {
		line, err := br.ReadString('\n')
		consumed += len(line)
		if err != nil {
			return nil, 0, fmt.Errorf("tck header ended before END: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "END" {
			return header, consumed, nil
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		header[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
}

// WriteTCK writes an MRtrix track file with little-endian float32 data
func WriteTCK(w io.Writer, t *models.Tractogram) error {
	bw := bufio.NewWriter(w)

	// the data offset is part of the header, so size the header with a
	// fixed width offset field
	const offsetWidth = 10
	head := fmt.Sprintf("%s\ncount: %d\ndatatype: Float32LE\nfile: . ", tckMagic, t.Len())
	tail := "\nEND\n"
	offset := len(head) + offsetWidth + len(tail)
	if _, err := fmt.Fprintf(bw, "%s%-*d%s", head, offsetWidth, offset, tail); err != nil {
		return fmt.Errorf("error writing tck header: %w", err)
	}

	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	for n, s := range t.Streamlines {
		values := make([]float32, 0, 3*len(s)+3)
		for _, p := range s {
			values = append(values, float32(p.X), float32(p.Y), float32(p.Z))
		}
		values = append(values, nan, nan, nan)
		if err := binary.Write(bw, binary.LittleEndian, values); err != nil {
			return fmt.Errorf("error writing streamline %d: %w", n, err)
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, []float32{inf, inf, inf}); err != nil {
		return fmt.Errorf("error writing tck terminator: %w", err)
	}

	return bw.Flush()
}
