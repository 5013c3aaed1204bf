package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

const (
	summarySheet = "Summary"
	historySheet = "History"
	timeLayout   = "2006-01-02 15:04:05"
)

var historyHeader = []interface{}{"#", "Time", "Step", "Kind", "Action", "Decision", "Actor", "Data"}

// ExcelHistoryExporter writes instance histories as .xlsx workbooks
type ExcelHistoryExporter struct {
	logger *zap.Logger
}

// NewExcelHistoryExporter creates a new Excel exporter
func NewExcelHistoryExporter(logger *zap.Logger) *ExcelHistoryExporter {
	return &ExcelHistoryExporter{logger: logger}
}

// Export renders a summary sheet and one history row per execution record
func (e *ExcelHistoryExporter) Export(ctx context.Context, instance *entity.WorkflowInstance, def *entity.WorkflowDefinition, records []*entity.StepExecutionRecord, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(historySheet); err != nil {
		return fmt.Errorf("failed to create history sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := e.fillSummary(f, instance, def, bold); err != nil {
		return fmt.Errorf("failed to fill summary: %w", err)
	}
	if err := e.fillHistory(f, records, bold); err != nil {
		return fmt.Errorf("failed to fill history: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("History exported",
		zap.String("instance_id", instance.ID),
		zap.Int("records", len(records)))
	return nil
}

func (e *ExcelHistoryExporter) fillSummary(f *excelize.File, instance *entity.WorkflowInstance, def *entity.WorkflowDefinition, bold int) error {
	stepName := ""
	if step := def.StepByID(instance.CurrentStepID); step != nil {
		stepName = step.Name
	}
	completed := ""
	if instance.CompletedAt != nil {
		completed = instance.CompletedAt.Format(timeLayout)
	}

	rows := [][]interface{}{
		{"Instance", instance.ID},
		{"Workflow", def.Name},
		{"Workflow Version", def.Version},
		{"Organization", instance.OrganizationID},
		{"Submitted By", instance.SubmittedByID},
		{"Status", instance.Status},
		{"Current Step", stepName},
		{"Submitted At", instance.CreatedAt.Format(timeLayout)},
		{"Completed At", completed},
	}

	keys := make([]string, 0, len(instance.Context))
	for k := range instance.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []interface{}{"context." + k, cast.ToString(instance.Context[k])})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(summarySheet, "A", bold); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

func (e *ExcelHistoryExporter) fillHistory(f *excelize.File, records []*entity.StepExecutionRecord, bold int) error {
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(historySheet, 1, 1, bold); err != nil {
		return err
	}

	for i, rec := range records {
		row := []interface{}{
			i + 1,
			rec.Timestamp.In(time.UTC).Format(timeLayout),
			rec.StepName,
			string(rec.Kind),
			rec.ActionTaken,
			string(rec.Decision),
			rec.ActorID,
			snapshotText(rec.DataSnapshot),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(historySheet, "B", "H", 18)
}

// snapshotText flattens a data snapshot to sorted key=value pairs
func snapshotText(snapshot map[string]any) string {
	if len(snapshot) == 0 {
		return ""
	}
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	text := ""
	for i, k := range keys {
		if i > 0 {
			text += "; "
		}
		text += k + "=" + cast.ToString(snapshot[k])
	}
	return text
}
