// Package export writes stored intelligence as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/riskintel/backend/internal/storage/models"
)

const IntelligenceSheet = "情报"

// IntelligenceHeaders are the column titles of the intelligence sheet.
var IntelligenceHeaders = []string{"标题", "中文标题", "发布日期", "类型", "摘要", "风险标签", "风险提示", "来源链接", "采集时间"}

// WriteIntelligence renders views as an xlsx workbook into w, one row per
// item in the given order.
func WriteIntelligence(w io.Writer, views []models.IntelligenceView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", IntelligenceSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeRow(f, 1, toCells(IntelligenceHeaders)); err != nil {
		return err
	}

	for i, v := range views {
		publish := ""
		if v.PublishDate != nil {
			publish = *v.PublishDate
		}
		row := []interface{}{
			v.Title,
			v.TitleZH,
			publish,
			v.ContentType,
			v.Summary,
			strings.Join(v.RiskTags, ", "),
			v.RiskHint,
			v.SourceURL,
			v.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(IntelligenceSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := f.SetSheetRow(IntelligenceSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
