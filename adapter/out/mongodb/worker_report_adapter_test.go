package mongodb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"report_worker/core/domain"
)

func TestListFilter(t *testing.T) {
	tests := []struct {
		name  string
		query domain.ReportQuery
		want  bson.M
	}{
		{"empty", domain.ReportQuery{}, bson.M{}},
		{
			"single agency",
			domain.ReportQuery{Agencies: []string{"MassHealth"}, Month: 3},
			bson.M{"agency": "MassHealth", "month": 3},
		},
		{
			"many agencies",
			domain.ReportQuery{Agencies: []string{"MassHealth", "Department of Revenue"}, Year: 2024},
			bson.M{"agency": bson.M{"$in": []string{"MassHealth", "Department of Revenue"}}, "year": 2024},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listFilter(tt.query))
		})
	}
}

func TestDocumentCompression(t *testing.T) {
	a := &ReportAdapter{now: func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }}

	t.Run("small report stays plain", func(t *testing.T) {
		doc, err := a.toDocument(&domain.ReportRecord{Agency: "MassHealth", Month: 3, Year: 2024, Report: "short"})
		require.NoError(t, err)
		assert.False(t, doc.IsCompressed)
		assert.Equal(t, []byte("short"), doc.Body)
		assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), doc.CreatedAt)
	})

	t.Run("large report is compressed and restored", func(t *testing.T) {
		body := strings.Repeat("riders report delays on the red line. ", 40)
		doc, err := a.toDocument(&domain.ReportRecord{Agency: "MBTA", Month: 2, Year: 2024, Report: body})
		require.NoError(t, err)
		assert.True(t, doc.IsCompressed)
		assert.Less(t, len(doc.Body), len(body))
		assert.Equal(t, int64(len(body)), doc.OriginalSize)

		record, err := toRecord(doc)
		require.NoError(t, err)
		assert.Equal(t, body, record.Report)
		assert.Equal(t, "MBTA", record.Agency)
		assert.Equal(t, 2, record.Month)
	})
}
