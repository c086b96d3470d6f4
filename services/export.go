// services/export.go
package services

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"reward-ledger-system/models"
	"reward-ledger-system/utils"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// ExportService builds ledger audit workbooks for the admin surface and
// uploads them to R2.
type ExportService struct {
	DB *gorm.DB
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{DB: db}
}

// ExportTransactions writes every ledger entry in [from, to) into an XLSX
// workbook, uploads it to R2 under exports/, and returns the public URL.
func (s *ExportService) ExportTransactions(from, to time.Time) (string, error) {
	var entries []models.Transaction
	if err := s.DB.Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return "", fmt.Errorf("failed to load transactions for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Ledger"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Timestamp", "User ID", "Type", "Points", "Earning", "Description"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	p := message.NewPrinter(language.English)
	var earnedTotal int64
	for i, e := range entries {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.CreatedAt.Format(time.RFC3339))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.UserID)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), string(e.Type))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), e.Points)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), e.Type.IsEarning())
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), e.Description)
		if e.Type.IsEarning() {
			earnedTotal += e.Points
		}
	}

	summaryRow := len(entries) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total credited")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), p.Sprintf("%d", earnedTotal))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize export workbook: %w", err)
	}

	key := fmt.Sprintf("exports/ledger_%s_%s.xlsx",
		from.Format("20060102"), to.Format("20060102"))
	url, err := utils.UploadBytesToR2(buf.Bytes(), key,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	log.Printf("📊 Ledger export uploaded: %s (%d entries, %s pts credited)",
		url, len(entries), p.Sprintf("%d", earnedTotal))
	return url, nil
}
