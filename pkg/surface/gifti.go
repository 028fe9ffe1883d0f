package surface

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"niwidgets/internal/models"
	"niwidgets/pkg/nifti"
)

// GIFTI intents used to find the mesh arrays
const (
	IntentPointSet = "NIFTI_INTENT_POINTSET"
	IntentTriangle = "NIFTI_INTENT_TRIANGLE"
)

// giftiTypes maps GIFTI data type names to NIfTI datatype codes
var giftiTypes = map[string]int16{
	"NIFTI_TYPE_UINT8":   nifti.DTUint8,
	"NIFTI_TYPE_INT8":    nifti.DTInt8,
	"NIFTI_TYPE_INT16":   nifti.DTInt16,
	"NIFTI_TYPE_UINT16":  nifti.DTUint16,
	"NIFTI_TYPE_INT32":   nifti.DTInt32,
	"NIFTI_TYPE_UINT32":  nifti.DTUint32,
	"NIFTI_TYPE_FLOAT32": nifti.DTFloat32,
	"NIFTI_TYPE_FLOAT64": nifti.DTFloat64,
}

type giftiXML struct {
	XMLName    xml.Name        `xml:"GIFTI"`
	DataArrays []giftiArrayXML `xml:"DataArray"`
}

type giftiArrayXML struct {
	Intent         string `xml:"Intent,attr"`
	DataType       string `xml:"DataType,attr"`
	IndexingOrder  string `xml:"ArrayIndexingOrder,attr"`
	Dimensionality int    `xml:"Dimensionality,attr"`
	Dim0           int    `xml:"Dim0,attr"`
	Dim1           int    `xml:"Dim1,attr"`
	Encoding       string `xml:"Encoding,attr"`
	Endian         string `xml:"Endian,attr"`
	Data           string `xml:"Data"`
}

// DataArray is one decoded GIFTI data array, values in row-major order
type DataArray struct {
	Intent string
	Dims   []int
	Values []float64
}

// ReadGIFTI decodes the data arrays of a GIFTI file. Arrays must be 1D or
// 2D and stored inline as ASCII, Base64Binary or GZipBase64Binary.
func ReadGIFTI(r io.Reader) ([]DataArray, error) {
	var doc giftiXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: not a GIFTI document: %v", ErrInvalidFile, err)
	}

	arrays := make([]DataArray, len(doc.DataArrays))
	for i, a := range doc.DataArrays {
		da, err := decodeGIFTIArray(a)
		if err != nil {
			return nil, fmt.Errorf("data array %d: %w", i, err)
		}
		arrays[i] = da
	}
	return arrays, nil
}

func decodeGIFTIArray(a giftiArrayXML) (DataArray, error) {
	da := DataArray{Intent: a.Intent}
	switch a.Dimensionality {
	case 1:
		da.Dims = []int{a.Dim0}
	case 2:
		da.Dims = []int{a.Dim0, a.Dim1}
	default:
		return da, fmt.Errorf("%w: %d dimensions, only 1 and 2 are supported", ErrInvalidFile, a.Dimensionality)
	}

	dt, ok := giftiTypes[a.DataType]
	if !ok {
		return da, fmt.Errorf("%w: unsupported data type %q", ErrInvalidFile, a.DataType)
	}
	size := nifti.BytesPerVoxel(dt)

	count := 1
	for _, d := range da.Dims {
		if d < 0 || (d > 0 && count > math.MaxInt/size/d) {
			return da, fmt.Errorf("%w: invalid dimensions %v", ErrInvalidFile, da.Dims)
		}
		count *= d
	}

	var err error
	switch a.Encoding {
	case "ASCII":
		da.Values, err = decodeASCII(a.Data, count)
	case "Base64Binary", "GZipBase64Binary":
		da.Values, err = decodeBinary(a, dt, count*size)
	default:
		err = fmt.Errorf("%w: unsupported encoding %q", ErrInvalidFile, a.Encoding)
	}
	if err != nil {
		return da, err
	}

	if a.IndexingOrder == "ColumnMajorOrder" && len(da.Dims) == 2 {
		da.Values = transpose(da.Values, da.Dims[1], da.Dims[0])
	}
	return da, nil
}

func decodeASCII(data string, count int) ([]float64, error) {
	fields := strings.Fields(data)
	if len(fields) != count {
		return nil, fmt.Errorf("%w: expected %d values, found %d", ErrInvalidFile, count, len(fields))
	}

	values := make([]float64, count)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		values[i] = v
	}
	return values, nil
}

func decodeBinary(a giftiArrayXML, dt int16, nbytes int) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(a.Data), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 data: %v", ErrInvalidFile, err)
	}

	if a.Encoding == "GZipBase64Binary" {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: bad compressed data: %v", ErrInvalidFile, err)
		}
		// one byte more than needed is enough to spot oversized data
		raw, err = io.ReadAll(io.LimitReader(zr, int64(nbytes)+1))
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: bad compressed data: %v", ErrInvalidFile, err)
		}
	}

	if len(raw) != nbytes {
		return nil, fmt.Errorf("%w: expected %d bytes of data, found %d", ErrInvalidFile, nbytes, len(raw))
	}

	var order binary.ByteOrder = binary.LittleEndian
	if a.Endian == "BigEndian" {
		order = binary.BigEndian
	}

	size := nifti.BytesPerVoxel(dt)
	values := make([]float64, nbytes/size)
	for i := range values {
		values[i] = nifti.DecodeValue(raw[i*size:], dt, order)
	}
	return values, nil
}

// transpose turns a rows x cols row-major matrix into cols x rows
func transpose(values []float64, rows, cols int) []float64 {
	out := make([]float64, len(values))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = values[i*cols+j]
		}
	}
	return out
}

// findArray returns the first array with the given intent, falling back to
// the array at position fallback
func findArray(arrays []DataArray, intent string, fallback int) (DataArray, bool) {
	for _, a := range arrays {
		if a.Intent == intent {
			return a, true
		}
	}
	if fallback < len(arrays) {
		return arrays[fallback], true
	}
	return DataArray{}, false
}

// MeshFromGIFTI builds a surface from the point set and triangle arrays.
// Without intents the first two arrays are used.
func MeshFromGIFTI(arrays []DataArray) (*models.Surface, error) {
	points, ok := findArray(arrays, IntentPointSet, 0)
	if !ok || len(points.Dims) != 2 || points.Dims[1] != 3 {
		return nil, fmt.Errorf("%w: no N x 3 point set array", ErrInvalidFile)
	}
	tris, ok := findArray(arrays, IntentTriangle, 1)
	if !ok || len(tris.Dims) != 2 || tris.Dims[1] != 3 {
		return nil, fmt.Errorf("%w: no M x 3 triangle array", ErrInvalidFile)
	}

	s := &models.Surface{
		Vertices:  make([]r3.Vec, points.Dims[0]),
		Triangles: make([][3]int, tris.Dims[0]),
	}
	for i := range s.Vertices {
		v := points.Values[3*i:]
		s.Vertices[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	for i := range s.Triangles {
		t := tris.Values[3*i:]
		s.Triangles[i] = [3]int{int(t[0]), int(t[1]), int(t[2])}
	}

	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}
