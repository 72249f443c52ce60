package export

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditDataset() Dataset {
	return Dataset{
		Title:   "Grade audit trail",
		Headers: []string{"changed_at", "student", "course", "old_grade", "new_grade", "actor"},
		Rows: []map[string]string{
			{"changed_at": "2026-03-01T09:00:00Z", "student": "Alice Smith", "course": "Calculus, I", "old_grade": "", "new_grade": "92", "actor": "system"},
			{"changed_at": "2026-02-27T14:30:00Z", "student": "SID:S9", "course": "CID:C9", "old_grade": "71.5", "new_grade": "", "actor": "registrar@example.edu"},
		},
	}
}

func TestCSVExporterGolden(t *testing.T) {
	out, err := NewCSVExporter().Render(auditDataset())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "grade_audit_csv", out)
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(auditDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
