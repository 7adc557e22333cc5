package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/pkg/logger"
)

type taskRow struct {
	ID               string         `db:"id"`
	Filename         string         `db:"filename"`
	UploadTime       int64          `db:"upload_time"`
	Status           string         `db:"status"`
	OverallRiskLevel sql.NullString `db:"overall_risk_level"`
}

func (r taskRow) toModel() models.ContractTask {
	t := models.ContractTask{
		ID:         r.ID,
		Filename:   r.Filename,
		UploadTime: time.UnixMilli(r.UploadTime).UTC(),
		Status:     r.Status,
	}
	if r.OverallRiskLevel.Valid {
		level := r.OverallRiskLevel.String
		t.OverallRiskLevel = &level
	}
	return t
}

type riskRow struct {
	ID           string          `db:"id"`
	TaskID       string          `db:"task_id"`
	ClauseID     sql.NullString  `db:"clause_id"`
	ClauseText   sql.NullString  `db:"clause_text"`
	RiskCategory sql.NullString  `db:"risk_category"`
	RiskLevel    sql.NullString  `db:"risk_level"`
	RiskReason   sql.NullString  `db:"risk_reason"`
	Explanation  sql.NullString  `db:"explanation"`
	Confidence   sql.NullFloat64 `db:"confidence"`
}

func (r riskRow) toModel() models.ContractRisk {
	return models.ContractRisk{
		ID:           r.ID,
		TaskID:       r.TaskID,
		ClauseID:     r.ClauseID.String,
		ClauseText:   r.ClauseText.String,
		RiskCategory: r.RiskCategory.String,
		RiskLevel:    r.RiskLevel.String,
		RiskReason:   r.RiskReason.String,
		Explanation:  r.Explanation.String,
		Confidence:   r.Confidence.Float64,
	}
}

func (c *Client) CreateTask(ctx context.Context, task *models.ContractTask) error {
	if task.UploadTime.IsZero() {
		task.UploadTime = time.Now()
	}

	query := c.db.Rebind(`INSERT INTO contract_tasks (id, filename, upload_time, status, overall_risk_level) VALUES (?, ?, ?, ?, ?)`)
	_, err := c.db.ExecContext(ctx, query,
		task.ID,
		task.Filename,
		task.UploadTime.UnixMilli(),
		task.Status,
		nullString(task.OverallRiskLevel),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contract task: %w", err)
	}

	logger.Debug("Contract task inserted", zap.String("task_id", task.ID), zap.String("filename", task.Filename))
	return nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.ContractTask, error) {
	var row taskRow
	query := c.db.Rebind(`SELECT id, filename, upload_time, status, overall_risk_level FROM contract_tasks WHERE id = ?`)
	err := c.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract task: %w", err)
	}

	task := row.toModel()
	return &task, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]models.ContractTask, error) {
	var rows []taskRow
	query := `SELECT id, filename, upload_time, status, overall_risk_level FROM contract_tasks ORDER BY upload_time DESC, id DESC`
	if err := c.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list contract tasks: %w", err)
	}

	tasks := make([]models.ContractTask, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toModel())
	}
	return tasks, nil
}

func (c *Client) ListRisks(ctx context.Context, taskID string) ([]models.ContractRisk, error) {
	var rows []riskRow
	query := c.db.Rebind(`SELECT id, task_id, clause_id, clause_text, risk_category, risk_level, risk_reason, explanation, confidence
		FROM contract_risks WHERE task_id = ?`)
	if err := c.db.SelectContext(ctx, &rows, query, taskID); err != nil {
		return nil, fmt.Errorf("failed to list contract risks: %w", err)
	}

	risks := make([]models.ContractRisk, 0, len(rows))
	for _, r := range rows {
		risks = append(risks, r.toModel())
	}
	return risks, nil
}

const insertRisk = `INSERT INTO contract_risks (id, task_id, clause_id, clause_text, risk_category, risk_level, risk_reason, explanation, confidence)
	VALUES (:id, :task_id, :clause_id, :clause_text, :risk_category, :risk_level, :risk_reason, :explanation, :confidence)`

// CompleteTask stores the risks and marks the task done with level in one transaction.
func (c *Client) CompleteTask(ctx context.Context, taskID, level string, risks []models.ContractRisk) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range risks {
			row := riskRow{
				ID:           r.ID,
				TaskID:       taskID,
				ClauseID:     sql.NullString{String: r.ClauseID, Valid: true},
				ClauseText:   sql.NullString{String: r.ClauseText, Valid: true},
				RiskCategory: sql.NullString{String: r.RiskCategory, Valid: r.RiskCategory != ""},
				RiskLevel:    sql.NullString{String: r.RiskLevel, Valid: true},
				RiskReason:   sql.NullString{String: r.RiskReason, Valid: r.RiskReason != ""},
				Explanation:  sql.NullString{String: r.Explanation, Valid: r.Explanation != ""},
				Confidence:   sql.NullFloat64{Float64: r.Confidence, Valid: true},
			}
			if _, err := tx.NamedExecContext(ctx, insertRisk, row); err != nil {
				return fmt.Errorf("failed to insert contract risk: %w", err)
			}
		}

		query := tx.Rebind(`UPDATE contract_tasks SET status = ?, overall_risk_level = ? WHERE id = ?`)
		res, err := tx.ExecContext(ctx, query, models.TaskDone, level, taskID)
		if err != nil {
			return fmt.Errorf("failed to complete contract task: %w", err)
		}
		return requireAffected(res)
	})
}

func (c *Client) FailTask(ctx context.Context, taskID string) error {
	query := c.db.Rebind(`UPDATE contract_tasks SET status = ? WHERE id = ?`)
	res, err := c.db.ExecContext(ctx, query, models.TaskFailed, taskID)
	if err != nil {
		return fmt.Errorf("failed to mark contract task failed: %w", err)
	}
	return requireAffected(res)
}

// DeleteTask removes the task's risks and then the task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM contract_risks WHERE task_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete contract risks: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM contract_tasks WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete contract task: %w", err)
		}
		return requireAffected(res)
	})
}

// ResetStaleTasks fails tasks left in processing since before.
func (c *Client) ResetStaleTasks(ctx context.Context, before time.Time) (int64, error) {
	query := c.db.Rebind(`UPDATE contract_tasks SET status = ? WHERE status = ? AND upload_time < ?`)
	res, err := c.db.ExecContext(ctx, query, models.TaskFailed, models.TaskProcessing, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale tasks: %w", err)
	}
	return res.RowsAffected()
}
