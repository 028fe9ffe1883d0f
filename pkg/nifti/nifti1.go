// Package nifti reads and writes single-file NIfTI-1 volumes.
//
// Based on the nifti1 header definition,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"niwidgets/internal/models"
)

// Datatype codes from nifti1.h
const (
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
	DTInt8    = 256
	DTUint16  = 512
	DTUint32  = 768
)

const (
	minHeaderSize = 348
	headerSize    = 352 // header plus the 4 byte extension flag
)

// ErrInvalidHeader is returned for files that are not NIfTI-1 single files
var ErrInvalidHeader = errors.New("invalid nifti1 header")

// Header defines the structure of the Nifti1 header.
//
// Type translation from nifti1 C header to golang:
//
// C     Go
// -------------
// int   int32
// float float32
// short int16
// char  byte
type Header struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]byte // Unused
	UnusedDbName       [18]byte // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      byte     // Unused
	DimInfo            byte     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     byte       // Slice timing order
	XYZTUnits     byte       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for 1 slice
	TOffset       float32    // Time axis shift
	UnusedGlmax   int32      // Unused
	UnusedGlmin   int32      // Unused

	Descrip [80]byte // Any text you like
	AuxFile [24]byte // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b params
	QuaternC float32 // Quaternion c params
	QuaternD float32 // Quaternion d params
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]byte // 'name' or meaning of data

	Magic [4]byte // Must be "n+1\0"
}

var singleFileMagic = [4]byte{'n', '+', '1', 0}

// BytesPerVoxel returns the storage size of a datatype, or 0 if unsupported
func BytesPerVoxel(datatype int16) int {
	switch datatype {
	case DTUint8, DTInt8:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTUint32, DTFloat32:
		return 4
	case DTFloat64:
		return 8
	}
	return 0
}

// ReadHeader decodes a header and returns the byte order of the file.
// The order is the one in which sizeof_hdr reads as 348.
func ReadHeader(b []byte) (Header, binary.ByteOrder, error) {
	var h Header
	if len(b) < minHeaderSize {
		return h, nil, fmt.Errorf("%w: file is only %d bytes", ErrInvalidHeader, len(b))
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(b) == minHeaderSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(b) == minHeaderSize:
		order = binary.BigEndian
	default:
		return h, nil, fmt.Errorf("%w: sizeof_hdr is not %d in either byte order", ErrInvalidHeader, minHeaderSize)
	}

	if err := binary.Read(bytes.NewReader(b[:minHeaderSize]), order, &h); err != nil {
		return h, nil, fmt.Errorf("error decoding header: %w", err)
	}
	if err := validateHeader(h); err != nil {
		return h, nil, err
	}

	log.WithFields(log.Fields{
		"byteOrder": order,
		"datatype":  h.DataType,
		"dim":       h.Dim,
	}).Debug("Read nifti1 header")

	return h, order, nil
}

func validateHeader(h Header) error {
	switch {
	case h.Magic != singleFileMagic:
		return fmt.Errorf("%w: magic must be n+1, data must be stored in the same file as the header", ErrInvalidHeader)
	case h.Dim[0] < 1 || h.Dim[0] > 7:
		return fmt.Errorf("%w: dim[0] = %d not in [1, 7]", ErrInvalidHeader, h.Dim[0])
	case BytesPerVoxel(h.DataType) == 0:
		return fmt.Errorf("%w: unsupported datatype %d", ErrInvalidHeader, h.DataType)
	}
	for i := 1; i <= int(h.Dim[0]); i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("%w: dim[%d] = %d", ErrInvalidHeader, i, h.Dim[i])
		}
	}
	return nil
}

// Decode converts the bytes of a .nii file into a volume. Only 3D and 4D
// images can be displayed; trailing dimensions of size 1 are dropped.
func Decode(b []byte) (*models.Volume, error) {
	h, order, err := ReadHeader(b)
	if err != nil {
		return nil, err
	}

	ndim := int(h.Dim[0])
	for ndim > 3 && h.Dim[ndim] == 1 {
		ndim--
	}
	if ndim != 3 && ndim != 4 {
		return nil, fmt.Errorf("input image should be 3D or 4D, got %dD", ndim)
	}

	nt := 1
	if ndim == 4 {
		nt = int(h.Dim[4])
	}

	offset := headerSize
	if int(h.VoxOffset) > offset {
		offset = int(h.VoxOffset)
	}
	if offset > len(b) {
		return nil, fmt.Errorf("image data truncated: data starts at %d, file has %d bytes", offset, len(b))
	}

	// the dimensions come from the file, so check them against the bytes
	// present before allocating; the product cannot overflow this way
	nbyper := BytesPerVoxel(h.DataType)
	available := (len(b) - offset) / nbyper
	nvox := 1
	for _, d := range []int{int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3]), nt} {
		if nvox > available/d {
			return nil, fmt.Errorf("image data truncated: dims %v need more than the %d bytes after offset %d", h.Dim[1:ndim+1], len(b)-offset, offset)
		}
		nvox *= d
	}
	end := offset + nvox*nbyper

	vol := models.NewVolume(int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3]), nt)
	vol.NDim = ndim
	vol.VoxelSize.X = float64(h.PixDim[1])
	vol.VoxelSize.Y = float64(h.PixDim[2])
	vol.VoxelSize.Z = float64(h.PixDim[3])

	slope, inter := float64(h.SclSlope), float64(h.SclInter)
	if slope == 0 || math.IsNaN(slope) {
		slope, inter = 1, 0
	}

	data := b[offset:end]
	for i := range vol.Data {
		vol.Data[i] = slope*DecodeValue(data[i*nbyper:], h.DataType, order) + inter
	}

	return vol, nil
}

// DecodeValue decodes one value of the given datatype from the start of b
func DecodeValue(b []byte, datatype int16, order binary.ByteOrder) float64 {
	switch datatype {
	case DTUint8:
		return float64(b[0])
	case DTInt8:
		return float64(int8(b[0]))
	case DTInt16:
		return float64(int16(order.Uint16(b)))
	case DTUint16:
		return float64(order.Uint16(b))
	case DTInt32:
		return float64(int32(order.Uint32(b)))
	case DTUint32:
		return float64(order.Uint32(b))
	case DTFloat32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case DTFloat64:
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}

// Load reads a .nii or .nii.gz file
func Load(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file %s not found: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream of %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	vol, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":  path,
		"shape": vol.Shape,
	}).Debug("Loaded volume")

	return vol, nil
}

// Encode writes a volume as a little-endian float32 single-file NIfTI-1.
// Masked voxels are stored as NaN.
func Encode(w io.Writer, vol *models.Volume) error {
	var h Header
	h.SizeOfHdr = minHeaderSize
	h.Dim[0] = int16(vol.NDim)
	for i := 0; i < 4; i++ {
		h.Dim[i+1] = int16(vol.Shape[i])
	}
	for i := 5; i < 8; i++ {
		h.Dim[i] = 1
	}
	h.DataType = DTFloat32
	h.BitPix = 32
	h.PixDim = [8]float32{1, float32(vol.VoxelSize.X), float32(vol.VoxelSize.Y), float32(vol.VoxelSize.Z), 1, 1, 1, 1}
	h.VoxOffset = headerSize
	h.SclSlope = 1
	h.Magic = singleFileMagic

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return fmt.Errorf("error writing extension flag: %w", err)
	}

	nx, ny, nz, nt := vol.Shape[0], vol.Shape[1], vol.Shape[2], vol.Shape[3]
	values := make([]float32, len(vol.Data))
	for t := 0; t < nt; t++ {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					idx := vol.Index(x, y, z, t)
					if vol.Masked(x, y, z) {
						values[idx] = float32(math.NaN())
					} else {
						values[idx] = float32(vol.Data[idx])
					}
				}
			}
		}
	}
	if err := binary.Write(w, binary.LittleEndian, values); err != nil {
		return fmt.Errorf("error writing image data: %w", err)
	}
	return nil
}

// Save writes a volume to path with Encode, gzip compressed when the path
// ends in .gz
func Save(vol *models.Volume, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	err = Encode(w, vol)
	if err == nil && gz != nil {
		err = gz.Close()
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("error saving %s: %w", path, err)
	}
	return f.Close()
}
