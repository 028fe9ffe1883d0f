// Package tractography reads streamline files.
//
// Supported formats are TrackVis (.trk) and MRtrix (.tck). Points are
// returned in RAS+ millimetres when the file carries enough information
// to get there, otherwise as stored.
package tractography

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"niwidgets/internal/models"
)

// ErrUnsupportedFormat is returned for files that are not a supported streamline format
var ErrUnsupportedFormat = errors.New("not a streamline file format supported by this reader")

// IsSupported reports whether path has the extension of a supported format
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".trk", ".tck":
		return true
	}
	return false
}

// Load reads a streamline file. A missing file wraps os.ErrNotExist.
func Load(path string) (*models.Tractogram, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file %s not found: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("file %s is a directory", path)
	}
	if !IsSupported(path) {
		return nil, fmt.Errorf("file %s: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	var t *models.Tractogram
	switch strings.ToLower(filepath.Ext(path)) {
	case ".trk":
		t, err = ReadTRK(f)
	case ".tck":
		t, err = ReadTCK(f)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":        path,
		"format":      t.Format,
		"streamlines": t.Len(),
		"points":      t.NumPoints(),
	}).Debug("Loaded tractogram")

	return t, nil
}

// Save writes a tractogram in the format given by the path's extension
func Save(t *models.Tractogram, path string) error {
	if !IsSupported(path) {
		return fmt.Errorf("file %s: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".trk":
		err = WriteTRK(f, t)
	case ".tck":
		err = WriteTCK(f, t)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
