package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
	"github.com/noah-isme/inbox-manager-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var exportColumns = []export.Column{
	{Key: models.ColumnCreatedAt, Header: "Created At", Width: 1.2},
	{Key: models.ColumnEmailSubject, Header: "Subject", Width: 2},
	{Key: models.ColumnCustomerEmail, Header: "Customer Message", Width: 3},
	{Key: models.ColumnPermission, Header: "Permission"},
	{Key: models.ColumnFeedback, Header: "Feedback", Width: 2},
	{Key: models.ColumnEdited, Header: "Edited", Width: 0.5},
	{Key: models.ColumnRemoved, Header: "Removed", Width: 0.6},
	{Key: models.ColumnID, Header: "ID", Width: 1.5},
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Catalog     *QueueCatalog
	Connections connectionSource
	CSV         renderer
	PDF         renderer
	Location    *time.Location
	Logger      *zap.Logger
	Now         func() time.Time
}

// ExportService renders the current contents of a queue as CSV or PDF.
type ExportService struct {
	catalog     *QueueCatalog
	connections connectionSource
	renderers   map[string]renderer
	location    *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	if params.CSV == nil {
		params.CSV = export.NewCSVExporter(true)
	}
	if params.PDF == nil {
		params.PDF = export.NewPDFExporter()
	}
	if params.Location == nil {
		params.Location = time.UTC
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &ExportService{
		catalog:     params.Catalog,
		connections: params.Connections,
		renderers: map[string]renderer{
			ExportFormatCSV: params.CSV,
			ExportFormatPDF: params.PDF,
		},
		location: params.Location,
		logger:   params.Logger,
		now:      params.Now,
	}
}

// Export reads the queue once, newest first, and renders it in format.
func (s *ExportService) Export(ctx context.Context, req OpenViewRequest, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	render, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	def, err := s.catalog.Get(req.Queue)
	if err != nil {
		return nil, err
	}
	var window *models.TimeWindow
	if def.TimeWindow {
		window, _, err = ParseTimeWindow(req.TimeRangeRequest, def.DefaultRange, s.location)
		if err != nil {
			return nil, err
		}
	}
	conn, err := s.connections.Require()
	if err != nil {
		return nil, err
	}

	now := s.now()
	records, err := conn.Store().Select(ctx, query.Compile(def.Filter, window, now))
	if err != nil {
		s.logger.Warn("export query failed", zap.String("queue", def.Name), zap.Error(err))
		return nil, wrapQueryError(err)
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("%s (%d items, %s)", def.Title, len(records), now.In(s.location).Format("2006-01-02 15:04")),
		Columns: exportColumns,
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, record := range records {
		dataset.Rows = append(dataset.Rows, s.exportRow(record))
	}
	payload, err := render.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", def.Name, now.UTC().Format("20060102_150405"), render.Extension()),
		ContentType: render.ContentType(),
		Data:        payload,
		Rows:        len(records),
	}, nil
}

func (s *ExportService) exportRow(record models.Record) map[string]string {
	row := make(map[string]string, len(exportColumns))
	for _, col := range exportColumns {
		switch col.Key {
		case models.ColumnCreatedAt:
			if created := record.CreatedAt(); !created.IsZero() {
				row[col.Key] = created.In(s.location).Format(time.RFC3339)
			}
		case models.ColumnEdited:
			row[col.Key] = strconv.FormatInt(record.Int(col.Key), 10)
		case models.ColumnRemoved:
			row[col.Key] = strconv.FormatBool(record.Bool(col.Key))
		default:
			row[col.Key] = record.String(col.Key)
		}
	}
	return row
}
