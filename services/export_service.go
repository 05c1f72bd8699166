package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportService renders a user's chat history as a spreadsheet for the
// admin surface.
type ExportService struct {
	chat *ChatService
}

func NewExportService(chat *ChatService) *ExportService {
	return &ExportService{chat: chat}
}

const exportHistoryLimit = 10000

// ExportUserHistory builds an xlsx with one row per chat turn plus a
// summary sheet, and returns the file bytes for streaming.
func (es *ExportService) ExportUserHistory(ctx context.Context, userID string) ([]byte, int, error) {
	turns, err := es.chat.GetUserHistory(ctx, userID, exportHistoryLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch history: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Lich su hoi thoai"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Thời gian", "Phiên", "Câu hỏi", "Trả lời", "File được chọn"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	sessions := map[string]bool{}
	for rowIdx, turn := range turns {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), turn.Timestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), turn.SessionID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), turn.Message)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), turn.Response)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), turn.SelectedFile)
		sessions[turn.SessionID] = true
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 26)
	f.SetColWidth(sheetName, "C", "D", 60)
	f.SetColWidth(sheetName, "E", "E", 30)

	summarySheet := "Tong quan"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, 0, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Tổng số câu hỏi", len(turns)},
		{"Tổng số phiên", len(sessions)},
	}
	for i, row := range summary {
		for j, cell := range row {
			cellRef := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(summarySheet, cellRef, cell)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, 0, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), len(turns), nil
}
