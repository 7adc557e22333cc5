package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/riskintel/backend/internal/storage/models"
)

func TestWriteIntelligence(t *testing.T) {
	date := "2024-03-01"
	views := []models.IntelligenceView{
		{
			IntelligenceItem: models.IntelligenceItem{
				Title:       "Import duties raised",
				TitleZH:     "进口关税上调",
				PublishDate: &date,
				ContentType: "政策法规",
				RiskTags:    []string{"关税", "钢材"},
				CreatedAt:   time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
			},
			SourceURL: "https://gov.uz/en/news/view/1",
		},
		{IntelligenceItem: models.IntelligenceItem{Title: "No date", RiskTags: []string{}}, SourceURL: "https://example.com"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteIntelligence(&buf, views))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(IntelligenceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, IntelligenceHeaders, rows[0])
	assert.Equal(t, "进口关税上调", rows[1][1])
	assert.Equal(t, "2024-03-01", rows[1][2])
	assert.Equal(t, "关税, 钢材", rows[1][5])
	assert.Equal(t, "https://gov.uz/en/news/view/1", rows[1][7])
	assert.Equal(t, "2024-03-02 08:00:00", rows[1][8])
	assert.Equal(t, "No date", rows[2][0])
}
