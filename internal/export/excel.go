// Package export выгружает предпросмотр списания остатков в Excel.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"workshop/internal/impact"
)

const sheetName = "Stock impact"

var headers = []string{
	"Item", "Unit", "Current stock", "Used", "After", "Minimum", "Severity", "Stock", "After (display)",
}

// severityFill задает цвет заливки строки по уровню
var severityFill = map[impact.Severity]string{
	impact.SeverityCritical: "#FFC7CE",
	impact.SeverityLow:      "#FFEB9C",
	impact.SeverityWarning:  "#FFF2CC",
	impact.SeverityNormal:   "#C6EFCE",
}

type Exporter struct {
	logger *zerolog.Logger
	now    func() time.Time
}

func NewExporter(logger *zerolog.Logger) *Exporter {
	return &Exporter{logger: logger, now: time.Now}
}

// ReportName возвращает имя файла отчета для предпросмотра
func (e *Exporter) ReportName(previewID string) string {
	return fmt.Sprintf("impact_%s_%s.xlsx", previewID, e.now().Format("2006-01-02_15-04-05"))
}

// WriteImpactReport собирает отчет по предпросмотру счета и пишет его в w.
// Файл на диске не создается.
func (e *Exporter) WriteImpactReport(w io.Writer, previewID string, p *impact.Preview) error {
	if p == nil {
		return fmt.Errorf("empty preview")
	}

	f, err := buildWorkbook(p)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}

	e.logger.Info().Str("preview_id", previewID).Int("items", len(p.Impacts)).Msg("impact report created")
	return nil
}

func buildWorkbook(p *impact.Preview) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// Заголовок со сведениями о счете
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s, %s, total %s",
		p.Invoice.CustomerName, p.Invoice.Date.Format("2006-01-02"), p.Invoice.Total.StringFixed(2)))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	styles := make(map[impact.Severity]int, len(severityFill))
	for severity, color := range severityFill {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating style: %w", err)
		}
		styles[severity] = style
	}

	for i, im := range p.Impacts {
		row := i + 3
		values := []interface{}{
			im.ItemName, im.UnitOfMeasure, im.CurrentStock, im.QuantityUsed, im.AfterStock,
			im.MinStock, string(im.Severity), im.StockDisplay, im.AfterDisplay,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(headers), row)
		_ = f.SetCellStyle(sheetName, first, last, styles[im.Severity])
	}

	_ = f.SetColWidth(sheetName, "A", "A", 30)
	_ = f.SetColWidth(sheetName, "B", "G", 14)
	_ = f.SetColWidth(sheetName, "H", "I", 28)

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}
