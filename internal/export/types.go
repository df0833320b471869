// Package export renders printable family tree reports as PDF or DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	TreeID          string
	Format          Format
	IncludePeople   bool
	IncludeCleanup  bool
	MaxPeopleListed int
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// TreeStats summarizes the tree being reported on.
type TreeStats struct {
	Name        string
	Description string
	Owner       string
	PersonCount int
	FamilyCount int
	RootCount   int
	UpdatedAt   time.Time
}

// PersonLine is one row in the people appendix.
type PersonLine struct {
	Name       string
	BirthDate  string
	BirthPlace string
	DeathDate  string
	DeathPlace string
}

// RegionCount is one row in the regional breakdown.
type RegionCount struct {
	Region string
	Count  int
}

// LocationLine is one row in the location quality section.
type LocationLine struct {
	Raw      string
	Count    int
	Severity string
	Issue    string
}

var (
	// ErrContentUnavailable indicates the tree data could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
