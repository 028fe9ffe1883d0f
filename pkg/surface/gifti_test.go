package surface

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func base64Of(values any, compress bool) string {
	var raw bytes.Buffer
	binary.Write(&raw, binary.LittleEndian, values)
	if !compress {
		return base64.StdEncoding.EncodeToString(raw.Bytes())
	}

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	zw.Write(raw.Bytes())
	zw.Close()
	return base64.StdEncoding.EncodeToString(z.Bytes())
}

func giftiArray(intent, dtype, order, encoding string, dims []int, data string) string {
	attrs := fmt.Sprintf(`Intent=%q DataType=%q ArrayIndexingOrder=%q Dimensionality="%d" Encoding=%q Endian="LittleEndian"`,
		intent, dtype, order, len(dims), encoding)
	for i, d := range dims {
		attrs += fmt.Sprintf(` Dim%d="%d"`, i, d)
	}
	return fmt.Sprintf("<DataArray %s>\n<MetaData></MetaData>\n<Data>%s</Data>\n</DataArray>\n", attrs, data)
}

func giftiDocument(arrays ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<GIFTI Version="1.0" NumberOfDataArrays="` + fmt.Sprint(len(arrays)) + `">
<MetaData></MetaData>
` + strings.Join(arrays, "") + "</GIFTI>\n"
}

// tetrahedronGIFTI encodes tetrahedron() with compressed points and plain triangles
func tetrahedronGIFTI() string {
	points := giftiArray(IntentPointSet, "NIFTI_TYPE_FLOAT32", "RowMajorOrder", "GZipBase64Binary", []int{4, 3},
		base64Of([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1}, true))
	tris := giftiArray(IntentTriangle, "NIFTI_TYPE_INT32", "RowMajorOrder", "Base64Binary", []int{4, 3},
		base64Of([]int32{0, 1, 2, 0, 1, 3, 0, 2, 3, 1, 2, 3}, false))
	return giftiDocument(points, tris)
}

// TestMeshFromGIFTI verifies a surface read from compressed and plain arrays
func TestMeshFromGIFTI(t *testing.T) {
	arrays, err := ReadGIFTI(strings.NewReader(tetrahedronGIFTI()))
	if err != nil {
		t.Fatalf("ReadGIFTI failed: %v", err)
	}
	if len(arrays) != 2 || arrays[0].Intent != IntentPointSet {
		t.Fatalf("Unexpected arrays %+v", arrays)
	}

	s, err := MeshFromGIFTI(arrays)
	if err != nil {
		t.Fatalf("MeshFromGIFTI failed: %v", err)
	}
	if !reflect.DeepEqual(s, tetrahedron()) {
		t.Errorf("Expected %v, got %v", tetrahedron(), s)
	}

	// triangles listed first are still found by their intent
	arrays[0], arrays[1] = arrays[1], arrays[0]
	if _, err := MeshFromGIFTI(arrays); err != nil {
		t.Errorf("Unexpected error with swapped arrays: %v", err)
	}
}

// TestReadGIFTIEncodings verifies ASCII data and column-major order
func TestReadGIFTIEncodings(t *testing.T) {
	doc := giftiDocument(
		giftiArray("NIFTI_INTENT_SHAPE", "NIFTI_TYPE_FLOAT32", "RowMajorOrder", "ASCII", []int{4}, "0.5 1\n2 -3"),
		giftiArray("NIFTI_INTENT_NONE", "NIFTI_TYPE_UINT8", "ColumnMajorOrder", "Base64Binary", []int{2, 3},
			base64Of([]uint8{1, 4, 2, 5, 3, 6}, false)),
	)

	arrays, err := ReadGIFTI(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadGIFTI failed: %v", err)
	}
	if !reflect.DeepEqual(arrays[0].Values, []float64{0.5, 1, 2, -3}) {
		t.Errorf("Unexpected ASCII values %v", arrays[0].Values)
	}
	if !reflect.DeepEqual(arrays[1].Dims, []int{2, 3}) || !reflect.DeepEqual(arrays[1].Values, []float64{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Expected row-major [1 2 3 4 5 6], got %v", arrays[1].Values)
	}
}

// TestReadGIFTIInvalid verifies bad documents and arrays are errors
func TestReadGIFTIInvalid(t *testing.T) {
	one := base64Of([]float32{1}, false)

	tests := map[string]string{
		"not xml":   "TRACK",
		"encoding":  giftiDocument(giftiArray("", "NIFTI_TYPE_FLOAT32", "", "ExternalFileBinary", []int{1}, "")),
		"data type": giftiDocument(giftiArray("", "NIFTI_TYPE_COMPLEX64", "", "Base64Binary", []int{1}, one)),
		"3d":        giftiDocument(giftiArray("", "NIFTI_TYPE_FLOAT32", "", "Base64Binary", []int{1, 1, 1}, one)),
		"short":     giftiDocument(giftiArray("", "NIFTI_TYPE_FLOAT32", "", "Base64Binary", []int{2}, one)),
		"huge":      giftiDocument(giftiArray("", "NIFTI_TYPE_FLOAT32", "", "GZipBase64Binary", []int{1 << 30, 1 << 30}, base64Of([]float32{1}, true))),
		"ascii":     giftiDocument(giftiArray("", "NIFTI_TYPE_FLOAT32", "", "ASCII", []int{3}, "1 2")),
		"base64":    giftiDocument(giftiArray("", "NIFTI_TYPE_FLOAT32", "", "Base64Binary", []int{1}, "!!!")),
	}

	for name, doc := range tests {
		if _, err := ReadGIFTI(strings.NewReader(doc)); !errors.Is(err, ErrInvalidFile) {
			t.Errorf("%s: expected ErrInvalidFile, got %v", name, err)
		}
	}

	// a point set without triangles is not a mesh
	arrays, err := ReadGIFTI(strings.NewReader(giftiDocument(
		giftiArray(IntentPointSet, "NIFTI_TYPE_FLOAT32", "", "ASCII", []int{1, 3}, "0 0 0"))))
	if err != nil {
		t.Fatalf("ReadGIFTI failed: %v", err)
	}
	if _, err := MeshFromGIFTI(arrays); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("Expected ErrInvalidFile for a mesh without triangles, got %v", err)
	}
}
