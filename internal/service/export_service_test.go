package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
	"github.com/noah-isme/inbox-manager-api/pkg/export"
)

func newExportServiceForTest(t *testing.T, conn *Connection) *ExportService {
	t.Helper()
	catalog, err := NewQueueCatalog(DefaultQueues())
	require.NoError(t, err)
	return NewExportService(ExportServiceParams{
		Catalog:     catalog,
		Connections: staticConnections{conn: conn},
		CSV:         export.NewCSVExporter(false),
		Now:         func() time.Time { return testBase.Add(6 * time.Hour) },
	})
}

func TestExportServiceCSV(t *testing.T) {
	conn, _, _ := newMemoryConnection(t, manualReplyRows()...)
	svc := newExportServiceForTest(t, conn)

	file, err := svc.Export(context.Background(), OpenViewRequest{Queue: "manual-reply"}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, file.Rows)
	assert.Equal(t, "manual-reply_20240501_150000.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Created At", rows[0][0])
	assert.Equal(t, "c", rows[1][len(rows[1])-1])
	assert.Equal(t, "a", rows[3][len(rows[3])-1])
}

func TestExportServicePDF(t *testing.T) {
	conn, _, _ := newMemoryConnection(t, manualReplyRows()...)
	svc := newExportServiceForTest(t, conn)

	file, err := svc.Export(context.Background(), OpenViewRequest{Queue: "manual-reply"}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceErrors(t *testing.T) {
	conn, _, _ := newMemoryConnection(t)
	svc := newExportServiceForTest(t, conn)

	_, err := svc.Export(context.Background(), OpenViewRequest{Queue: "manual-reply"}, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Export(context.Background(), OpenViewRequest{Queue: "missing"}, "csv")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	disconnected := newExportServiceForTest(t, nil)
	_, err = disconnected.Export(context.Background(), OpenViewRequest{Queue: "manual-reply"}, "csv")
	assert.ErrorIs(t, err, appErrors.ErrConnectionMissing)
}
