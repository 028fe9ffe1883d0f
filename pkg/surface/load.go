package surface

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"niwidgets/internal/models"
)

// ErrUnsupportedOverlay is returned for overlay files of an unknown kind
var ErrUnsupportedOverlay = errors.New("overlay must be a .annot, .curv, .thickness, .sulc or .gii file")

func open(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file %s not found: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("file %s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	return f, nil
}

// LoadMesh reads a .gii surface or a FreeSurfer surface such as lh.pial
func LoadMesh(path string) (*models.Surface, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s *models.Surface
	if strings.ToLower(filepath.Ext(path)) == ".gii" {
		var arrays []DataArray
		if arrays, err = ReadGIFTI(f); err == nil {
			s, err = MeshFromGIFTI(arrays)
		}
	} else {
		s, err = ReadGeometry(f)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":      path,
		"vertices":  len(s.Vertices),
		"triangles": len(s.Triangles),
	}).Debug("Loaded surface")

	return s, nil
}

// LoadOverlay reads per-vertex values. Annotations give each vertex its
// color table index.
func LoadOverlay(path string) (*Overlay, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var read func(io.Reader) ([]float64, error)
	switch ext {
	case ".gii":
		read = readGIFTIOverlay
	case ".annot", "":
		read = readAnnotOverlay
	case ".curv", ".thickness", ".sulc":
		read = ReadMorphData
	default:
		return nil, fmt.Errorf("file %s: %w", path, ErrUnsupportedOverlay)
	}

	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":   path,
		"values": len(values),
	}).Debug("Loaded overlay")

	return &Overlay{Name: filepath.Base(path), Values: values}, nil
}

func readGIFTIOverlay(r io.Reader) ([]float64, error) {
	arrays, err := ReadGIFTI(r)
	if err != nil {
		return nil, err
	}
	if len(arrays) == 0 {
		return nil, fmt.Errorf("%w: no data arrays", ErrInvalidFile)
	}
	return arrays[0].Values, nil
}

func readAnnotOverlay(r io.Reader) ([]float64, error) {
	a, err := ReadAnnot(r)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(a.Labels))
	for i, l := range a.Labels {
		values[i] = float64(l)
	}
	return values, nil
}
