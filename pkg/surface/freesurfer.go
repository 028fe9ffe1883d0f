package surface

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"niwidgets/internal/models"
)

// FreeSurfer magic numbers, stored as 3 byte big-endian integers
const (
	triangleMagic = 0xfffffe
	newCurvMagic  = 0xffffff
)

// ErrInvalidFile is returned for files that cannot be decoded as a surface or overlay
var ErrInvalidFile = errors.New("invalid surface file")

// beReader decodes big-endian fields from a byte slice. The first short
// read is remembered and every later read returns zero.
type beReader struct {
	b   []byte
	off int
	err error
}

func (d *beReader) remaining() int {
	return len(d.b) - d.off
}

func (d *beReader) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.remaining() {
		d.err = io.ErrUnexpectedEOF
		return nil
	}
	b := d.b[d.off : d.off+n]
	d.off += n
	return b
}

func (d *beReader) int24() int {
	b := d.next(3)
	if b == nil {
		return 0
	}
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

func (d *beReader) int16() int {
	b := d.next(2)
	if b == nil {
		return 0
	}
	return int(int16(binary.BigEndian.Uint16(b)))
}

func (d *beReader) int32() int {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return int(int32(binary.BigEndian.Uint32(b)))
}

func (d *beReader) float32() float64 {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
}

// count reads a 32-bit element count and checks that count elements of
// size bytes each fit in what is left of the file
func (d *beReader) count(what string, size int) (int, error) {
	n := d.int32()
	if d.err != nil {
		return 0, fmt.Errorf("%w: reading %s count: %v", ErrInvalidFile, what, d.err)
	}
	if n < 0 || n > d.remaining()/size {
		return 0, fmt.Errorf("%w: %d %s do not fit in the remaining %d bytes", ErrInvalidFile, n, what, d.remaining())
	}
	return n, nil
}

// ReadGeometry reads a FreeSurfer triangle surface such as lh.pial or rh.white
func ReadGeometry(r io.Reader) (*models.Surface, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading surface: %w", err)
	}

	d := &beReader{b: b}
	if d.int24() != triangleMagic || d.err != nil {
		return nil, fmt.Errorf("%w: not a FreeSurfer triangle surface", ErrInvalidFile)
	}

	// the creation stamp line is followed by an empty line
	end := bytes.Index(b[d.off:], []byte("\n\n"))
	if end < 0 {
		return nil, fmt.Errorf("%w: missing creation stamp", ErrInvalidFile)
	}
	d.off += end + 2

	vnum, err := d.count("vertices", 12)
	if err != nil {
		return nil, err
	}
	fnum := d.int32()
	if fnum < 0 || fnum > (d.remaining()-12*vnum)/12 {
		return nil, fmt.Errorf("%w: %d faces do not fit in the file", ErrInvalidFile, fnum)
	}

	s := &models.Surface{
		Vertices:  make([]r3.Vec, vnum),
		Triangles: make([][3]int, fnum),
	}
	for i := range s.Vertices {
		s.Vertices[i] = r3.Vec{X: d.float32(), Y: d.float32(), Z: d.float32()}
	}
	for i := range s.Triangles {
		for k := 0; k < 3; k++ {
			s.Triangles[i][k] = d.int32()
		}
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, d.err)
	}

	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadMorphData reads per-vertex values from a .curv, .thickness or .sulc
// file, in the current format or the old one storing values as int16
// hundredths
func ReadMorphData(r io.Reader) ([]float64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading morphometry data: %w", err)
	}

	d := &beReader{b: b}
	magic := d.int24()
	if d.err != nil {
		return nil, fmt.Errorf("%w: morphometry file too short", ErrInvalidFile)
	}

	if magic != newCurvMagic {
		// old format: the magic was the vertex count, a face count follows
		vnum := magic
		d.int24()
		if vnum > d.remaining()/2 {
			return nil, fmt.Errorf("%w: %d values do not fit in the file", ErrInvalidFile, vnum)
		}
		values := make([]float64, vnum)
		for i := range values {
			values[i] = float64(d.int16()) / 100
		}
		if d.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, d.err)
		}
		return values, nil
	}

	vnum := d.int32()
	d.int32() // face count
	if perVertex := d.int32(); perVertex != 1 && d.err == nil {
		return nil, fmt.Errorf("%w: %d values per vertex, only 1 is supported", ErrInvalidFile, perVertex)
	}
	if d.err != nil || vnum < 0 || vnum > d.remaining()/4 {
		return nil, fmt.Errorf("%w: %d values do not fit in the file", ErrInvalidFile, vnum)
	}

	values := make([]float64, vnum)
	for i := range values {
		values[i] = d.float32()
	}
	return values, nil
}

// Label is one entry of an annotation's color table
type Label struct {
	// Index is the entry's position in the color table
	Index int
	Name  string
	RGBA  [4]int
}

// value returns the packed color FreeSurfer stores per vertex for the label
func (l Label) value() int {
	return l.RGBA[0] | l.RGBA[1]<<8 | l.RGBA[2]<<16
}

// Annotation is a parcellation read from a .annot file
type Annotation struct {
	// Labels holds the color table index of each vertex; -1 marks vertices
	// whose color is not in the table
	Labels []int

	Table []Label
}

// ReadAnnot reads a FreeSurfer .annot parcellation with either the old or
// the version 2 color table layout
func ReadAnnot(r io.Reader) (*Annotation, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading annotation: %w", err)
	}
	d := &beReader{b: b}

	vnum, err := d.count("vertices", 8)
	if err != nil {
		return nil, err
	}
	values := make([]int, vnum)
	for i := 0; i < vnum; i++ {
		vertex, value := d.int32(), d.int32()
		if vertex < 0 || vertex >= vnum {
			return nil, fmt.Errorf("%w: vertex %d outside [0, %d)", ErrInvalidFile, vertex, vnum)
		}
		values[vertex] = value
	}

	if d.int32() == 0 || d.err != nil {
		return nil, fmt.Errorf("%w: color table not found in annotation", ErrInvalidFile)
	}

	var table []Label
	n := d.int32()
	if n > 0 {
		table, err = readOldColorTable(d, n)
	} else {
		table, err = readColorTable(d, -n)
	}
	if err != nil {
		return nil, err
	}

	byValue := make(map[int]int, len(table))
	for _, l := range table {
		byValue[l.value()] = l.Index
	}

	a := &Annotation{Labels: make([]int, vnum), Table: table}
	for i, v := range values {
		idx, ok := byValue[v]
		if !ok {
			idx = -1
		}
		a.Labels[i] = idx
	}
	return a, nil
}

// an entry holds at least a name length and four color components
const minLabelSize = 20

func readOldColorTable(d *beReader, n int) ([]Label, error) {
	if n > d.remaining()/minLabelSize {
		return nil, fmt.Errorf("%w: %d color table entries do not fit in the file", ErrInvalidFile, n)
	}
	d.next(d.int32()) // original color table file name

	table := make([]Label, n)
	for i := range table {
		table[i] = readLabel(d, i)
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, d.err)
	}
	return table, nil
}

func readColorTable(d *beReader, version int) ([]Label, error) {
	if version != 2 {
		return nil, fmt.Errorf("%w: color table version %d is not supported", ErrInvalidFile, version)
	}
	d.int32()         // number of entries the table could hold
	d.next(d.int32()) // original color table file name

	n, err := d.count("color table entries", minLabelSize+4)
	if err != nil {
		return nil, err
	}
	table := make([]Label, n)
	for i := range table {
		table[i] = readLabel(d, d.int32())
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, d.err)
	}
	return table, nil
}

func readLabel(d *beReader, index int) Label {
	l := Label{Index: index}
	l.Name = string(bytes.TrimRight(d.next(d.int32()), "\x00"))
	for k := range l.RGBA {
		l.RGBA[k] = d.int32()
	}
	return l
}
