package tractography

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"

	"niwidgets/internal/models"
)

const trkHeaderSize = 1000

// trkChunkValues caps the float32 values read per call while decoding a track
const trkChunkValues = 1 << 16

// trkHeader mirrors the 1000 byte TrackVis header
type trkHeader struct {
	IDString     [6]byte // "TRACK\0"
	Dim          [3]int16
	VoxelSize    [3]float32
	Origin       [3]float32
	NScalars     int16
	ScalarName   [10][20]byte
	NProperties  int16
	PropertyName [10][20]byte
	VoxToRAS     [4][4]float32
	Reserved     [444]byte
	VoxelOrder   [4]byte
	Pad2         [4]byte
	ImageOrient  [6]float32
	Pad1         [2]byte
	InvertX      uint8
	InvertY      uint8
	InvertZ      uint8
	SwapXY       uint8
	SwapYZ       uint8
	SwapZX       uint8
	NCount       int32
	Version      int32
	HdrSize      int32
}

// ReadTRK reads a TrackVis file. The byte order is detected from the
// header size field.
func ReadTRK(r io.Reader) (*models.Tractogram, error) {
	br := bufio.NewReader(r)

	raw := make([]byte, trkHeaderSize)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("error reading trk header: %w", err)
	}
	if !bytes.HasPrefix(raw, []byte("TRACK")) {
		return nil, fmt.Errorf("missing TRACK magic: %w", ErrUnsupportedFormat)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(raw[996:]) == trkHeaderSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw[996:]) == trkHeaderSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid trk header size: %w", ErrUnsupportedFormat)
	}

	var h trkHeader
	if err := binary.Read(bytes.NewReader(raw), order, &h); err != nil {
		return nil, fmt.Errorf("error decoding trk header: %w", err)
	}
	if h.NScalars < 0 || h.NProperties < 0 {
		return nil, fmt.Errorf("invalid trk header: %d scalars, %d properties", h.NScalars, h.NProperties)
	}

	t := &models.Tractogram{Format: "trk"}
	for i := 0; i < 3; i++ {
		t.Dimensions[i] = int(h.Dim[i])
		t.VoxelSize[i] = float64(h.VoxelSize[i])
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			t.VoxToRAS[i][j] = float64(h.VoxToRAS[i][j])
		}
	}
	toRAS := trkToRAS(t)

	stride := 3 + int(h.NScalars)
	chunkPoints := max(1, trkChunkValues/stride)
	chunk := make([]float32, chunkPoints*stride)
	for n := 0; h.NCount <= 0 || n < int(h.NCount); n++ {
		var count int32
		if err := binary.Read(br, order, &count); err != nil {
			if errors.Is(err, io.EOF) && h.NCount <= 0 {
				break
			}
			return nil, fmt.Errorf("error reading streamline %d: %w", n, err)
		}
		if count < 0 {
			return nil, fmt.Errorf("streamline %d has negative point count %d", n, count)
		}

		// count comes from the file, so points are read in bounded chunks
		// and a short file fails before anything large is allocated
		s := make(models.Streamline, 0, min(int(count), chunkPoints))
		for remaining := int(count); remaining > 0; {
			k := min(remaining, chunkPoints)
			values := chunk[:k*stride]
			if err := binary.Read(br, order, values); err != nil {
				return nil, fmt.Errorf("error reading points of streamline %d: %w", n, err)
			}
			for p := 0; p < k; p++ {
				v := values[p*stride:]
				s = append(s, toRAS(r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}))
			}
			remaining -= k
		}
		if h.NProperties > 0 {
			if err := binary.Read(br, order, make([]float32, h.NProperties)); err != nil {
				return nil, fmt.Errorf("error reading properties of streamline %d: %w", n, err)
			}
		}
		t.Streamlines = append(t.Streamlines, s)
	}

	return t, nil
}

// trkToRAS returns the mapping from stored voxmm coordinates to RAS+ mm.
// Stored points are in millimetres from the corner of the first voxel, so
// they are brought to voxel centres before applying the affine. Files
// without an affine keep their coordinates.
func trkToRAS(t *models.Tractogram) func(r3.Vec) r3.Vec {
	a := t.VoxToRAS
	vs := t.VoxelSize
	if a[3][3] == 0 || vs[0] == 0 || vs[1] == 0 || vs[2] == 0 {
		return func(p r3.Vec) r3.Vec { return p }
	}

	return func(p r3.Vec) r3.Vec {
		i := p.X/vs[0] - 0.5
		j := p.Y/vs[1] - 0.5
		k := p.Z/vs[2] - 0.5
		return r3.Vec{
			X: a[0][0]*i + a[0][1]*j + a[0][2]*k + a[0][3],
			Y: a[1][0]*i + a[1][1]*j + a[1][2]*k + a[1][3],
			Z: a[2][0]*i + a[2][1]*j + a[2][2]*k + a[2][3],
		}
	}
}

// WriteTRK writes a little-endian TrackVis file without scalars or
// properties. The affine is left unset so points read back unchanged.
func WriteTRK(w io.Writer, t *models.Tractogram) error {
	var h trkHeader
	copy(h.IDString[:], "TRACK")
	for i := 0; i < 3; i++ {
		h.Dim[i] = int16(t.Dimensions[i])
		h.VoxelSize[i] = float32(t.VoxelSize[i])
	}
	copy(h.VoxelOrder[:], "LAS")
	h.NCount = int32(t.Len())
	h.Version = 2
	h.HdrSize = trkHeaderSize

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("error writing trk header: %w", err)
	}

	for n, s := range t.Streamlines {
		values := make([]float32, 0, 3*len(s))
		for _, p := range s {
			values = append(values, float32(p.X), float32(p.Y), float32(p.Z))
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(len(s))); err != nil {
			return fmt.Errorf("error writing streamline %d: %w", n, err)
		}
		if err := binary.Write(bw, binary.LittleEndian, values); err != nil {
			return fmt.Errorf("error writing streamline %d: %w", n, err)
		}
	}

	return bw.Flush()
}
