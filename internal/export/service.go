package export

import (
	"context"
	"fmt"
	"time"
)

// DataSource supplies the tree data a report is built from. The app
// layer implements this on top of the store and cleanup packages.
type DataSource interface {
	ReportData(ctx context.Context, req Request) (TemplateData, error)
}

// Service renders family tree reports
type Service struct {
	source DataSource
}

// NewService creates a new export service
func NewService(source DataSource) *Service {
	return &Service{source: source}
}

// Export generates a report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	data, err := s.source.ReportData(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load report data: %w", err)
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, data.Tree.Name)
	case FormatDOCX:
		return exportDOCX(html, data.Tree.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
