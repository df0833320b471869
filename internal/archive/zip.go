// Package archive unpacks uploaded zip files and finds the GEDCOM
// inside. Desktop genealogy programs commonly export a .zip holding
// one .ged plus media folders we do not care about.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNoGedcom is returned when an archive contains no .ged or .gedcom file.
var ErrNoGedcom = errors.New("archive contains no GEDCOM file")

const maxEntrySize = 256 << 20 // refuse zip-bomb sized entries

// IsZip sniffs the PK magic bytes.
func IsZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' &&
		(data[2] == 3 || data[2] == 5 || data[2] == 7)
}

// ExtractGedcom returns the contents and name of the first GEDCOM file
// found in the archive. Entries are scanned in archive order; macOS
// resource-fork entries under __MACOSX are skipped.
func ExtractGedcom(data []byte) ([]byte, string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("open zip: %w", err)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(f.Name)
		if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._") {
			continue
		}
		ext := strings.ToLower(path.Ext(name))
		if ext != ".ged" && ext != ".gedcom" {
			continue
		}
		if f.UncompressedSize64 > maxEntrySize {
			return nil, "", fmt.Errorf("archive entry %s too large", name)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open archive entry %s: %w", name, err)
		}
		contents, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read archive entry %s: %w", name, err)
		}
		if len(contents) > maxEntrySize {
			return nil, "", fmt.Errorf("archive entry %s too large", name)
		}
		return contents, path.Base(name), nil
	}

	return nil, "", ErrNoGedcom
}
