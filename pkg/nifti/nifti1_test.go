package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"niwidgets/internal/models"
)

func gradientVolume(nx, ny, nz, nt int) *models.Volume {
	vol := models.NewVolume(nx, ny, nz, nt)
	for t := 0; t < vol.Shape[3]; t++ {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					vol.Set(x, y, z, t, float64(x+10*y+100*z+1000*t))
				}
			}
		}
	}
	vol.VoxelSize.X, vol.VoxelSize.Y, vol.VoxelSize.Z = 1, 2, 3
	return vol
}

// TestRoundTrip verifies a volume survives Save and Load, plain and gzipped
func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"vol.nii", "vol.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			vol := gradientVolume(4, 3, 2, 2)
			path := filepath.Join(t.TempDir(), name)
			if err := Save(vol, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got.Shape != vol.Shape || got.NDim != 4 {
				t.Errorf("Expected shape %v (4D), got %v (%dD)", vol.Shape, got.Shape, got.NDim)
			}
			if got.VoxelSize != vol.VoxelSize {
				t.Errorf("Expected voxel size %v, got %v", vol.VoxelSize, got.VoxelSize)
			}
			for i := range vol.Data {
				if got.Data[i] != vol.Data[i] {
					t.Fatalf("Voxel %d: expected %f, got %f", i, vol.Data[i], got.Data[i])
				}
			}
		})
	}
}

// TestEncodeMasked verifies masked voxels are written as NaN
func TestEncodeMasked(t *testing.T) {
	vol := gradientVolume(2, 2, 2, 1)
	vol.Mask = make([]bool, 8)
	vol.Mask[0] = true

	var buf bytes.Buffer
	if err := Encode(&buf, vol); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.NDim != 3 {
		t.Errorf("Expected 3D volume, got %dD", got.NDim)
	}
	if !math.IsNaN(got.Data[0]) {
		t.Errorf("Expected NaN for masked voxel, got %f", got.Data[0])
	}
	if got.Data[1] != 1 {
		t.Errorf("Expected 1 for unmasked voxel, got %f", got.Data[1])
	}
}

// rawNifti builds a big-endian int16 file with scaling
func rawNifti(t *testing.T, values []int16, slope, inter float32) []byte {
	t.Helper()

	var h Header
	h.SizeOfHdr = minHeaderSize
	h.Dim = [8]int16{3, int16(len(values)), 1, 1, 1, 1, 1, 1}
	h.DataType = DTInt16
	h.BitPix = 16
	h.VoxOffset = headerSize
	h.SclSlope = slope
	h.SclInter = inter
	h.Magic = singleFileMagic

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, &h); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	buf.Write([]byte{0, 0, 0, 0})
	binary.Write(&buf, binary.BigEndian, values)
	return buf.Bytes()
}

// TestDecodeBigEndianScaled verifies byte order detection and scl_slope
func TestDecodeBigEndianScaled(t *testing.T) {
	b := rawNifti(t, []int16{-2, 0, 300}, 0.5, 1)

	_, order, err := ReadHeader(b)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if order != binary.BigEndian {
		t.Errorf("Expected big endian, got %v", order)
	}

	vol, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0, 1, 151}
	for i, w := range want {
		if vol.Data[i] != w {
			t.Errorf("Voxel %d: expected %f, got %f", i, w, vol.Data[i])
		}
	}

	// a zero slope means no scaling
	vol, _ = Decode(rawNifti(t, []int16{7}, 0, 3))
	if vol.Data[0] != 7 {
		t.Errorf("Expected unscaled 7, got %f", vol.Data[0])
	}
}

// TestDecodeInvalid verifies header validation errors
func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("Expected ErrInvalidHeader for short input, got %v", err)
	}

	b := rawNifti(t, []int16{1, 2}, 1, 0)
	b[344] = 'x'
	if _, err := Decode(b); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("Expected ErrInvalidHeader for bad magic, got %v", err)
	}

	b = rawNifti(t, []int16{1, 2}, 1, 0)
	if _, err := Decode(b[:len(b)-1]); err == nil {
		t.Error("Expected error for truncated data, got nil")
	}

	// a 2D image cannot be shown as orthogonal views
	b = rawNifti(t, []int16{1, 2}, 1, 0)
	binary.BigEndian.PutUint16(b[40:], 2)
	if _, err := Decode(b); err == nil {
		t.Error("Expected error for 2D image, got nil")
	}
}

// TestDecodeOversizedDims verifies dimensions larger than the file are an
// error rather than an allocation of the announced size
func TestDecodeOversizedDims(t *testing.T) {
	b := rawNifti(t, []int16{1, 2}, 1, 0)
	binary.BigEndian.PutUint16(b[40:], 4)
	for i := 1; i <= 4; i++ {
		binary.BigEndian.PutUint16(b[40+2*i:], 32767)
	}

	if _, err := Decode(b); err == nil {
		t.Error("Expected error for dimensions past the end of the file, got nil")
	}

	// data offset beyond the file
	b = rawNifti(t, []int16{1, 2}, 1, 0)
	binary.BigEndian.PutUint32(b[108:], math.Float32bits(1e6))
	if _, err := Decode(b); err == nil {
		t.Error("Expected error for a data offset past the end of the file, got nil")
	}
}

// TestLoadMissing verifies a missing file is reported
func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.nii")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}
