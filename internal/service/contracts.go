package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/contract"
	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

// ErrAnalysisFailed wraps every upload failure; the task is left failed.
var ErrAnalysisFailed = errors.New("contract analysis failed")

type ContractStore interface {
	CreateTask(ctx context.Context, task *models.ContractTask) error
	GetTask(ctx context.Context, id string) (*models.ContractTask, error)
	ListTasks(ctx context.Context) ([]models.ContractTask, error)
	ListRisks(ctx context.Context, taskID string) ([]models.ContractRisk, error)
	CompleteTask(ctx context.Context, taskID, level string, risks []models.ContractRisk) error
	FailTask(ctx context.Context, taskID string) error
	DeleteTask(ctx context.Context, id string) error
}

type ContractAnalyzer interface {
	Analyze(ctx context.Context, documentName, text string) (*contract.Report, error)
}

type Contracts struct {
	store         ContractStore
	analyzer      ContractAnalyzer
	minTextLength int
}

func NewContracts(store ContractStore, analyzer ContractAnalyzer, minTextLength int) *Contracts {
	if minTextLength <= 0 {
		minTextLength = contract.DefaultOptions().MinTextLength
	}
	return &Contracts{store: store, analyzer: analyzer, minTextLength: minTextLength}
}

type UploadResult struct {
	TaskID           string `json:"task_id"`
	Status           string `json:"status"`
	OverallRiskLevel string `json:"overall_risk_level,omitempty"`
	Risks            int    `json:"risks"`
}

// Upload records a task, analyses the document synchronously and stores the
// findings. On failure the task is marked failed and the result is returned
// alongside an error wrapping ErrAnalysisFailed.
func (s *Contracts) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	task := &models.ContractTask{
		ID:         uuid.NewString(),
		Filename:   filename,
		Status:     models.TaskProcessing,
		UploadTime: time.Now().UTC(),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	logger.Info("Contract received", zap.String("task_id", task.ID), zap.String("filename", filename), zap.Int("bytes", len(data)))

	level, stored, err := s.analyse(ctx, task.ID, filename, data)
	if err != nil {
		logger.Error("Contract analysis failed", zap.String("task_id", task.ID), zap.Error(err))
		if ferr := s.store.FailTask(context.WithoutCancel(ctx), task.ID); ferr != nil {
			logger.Error("Failed to mark task failed", zap.String("task_id", task.ID), zap.Error(ferr))
		}
		metrics.ContractTasks.WithLabelValues(models.TaskFailed).Inc()
		return &UploadResult{TaskID: task.ID, Status: models.TaskFailed}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	metrics.ContractTasks.WithLabelValues(models.TaskDone).Inc()
	logger.Info("Contract analysed", zap.String("task_id", task.ID), zap.String("level", level), zap.Int("risks", stored))

	return &UploadResult{TaskID: task.ID, Status: models.TaskDone, OverallRiskLevel: level, Risks: stored}, nil
}

func (s *Contracts) analyse(ctx context.Context, taskID, filename string, data []byte) (string, int, error) {
	text, err := contract.Decode(filename, data)
	if err != nil {
		return "", 0, err
	}

	report, err := s.analyzer.Analyze(ctx, filename, text)
	if err != nil {
		return "", 0, err
	}

	risks := make([]models.ContractRisk, 0, len(report.Risks))
	for _, f := range report.Risks {
		risks = append(risks, toRisk(taskID, f))
	}
	if err := s.store.CompleteTask(ctx, taskID, report.OverallLevel, risks); err != nil {
		return "", 0, err
	}

	for _, r := range risks {
		metrics.ContractRisks.WithLabelValues(r.RiskLevel).Inc()
	}
	return report.OverallLevel, len(risks), nil
}

type ContractResult struct {
	Task  *models.ContractTask  `json:"task"`
	Risks []models.ContractRisk `json:"risks"`
}

func (s *Contracts) Result(ctx context.Context, id string) (*ContractResult, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	risks, err := s.store.ListRisks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ContractResult{Task: task, Risks: risks}, nil
}

// List returns tasks newest first.
func (s *Contracts) List(ctx context.Context) ([]models.ContractTask, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.ContractTask{}
	}
	return tasks, nil
}

func (s *Contracts) Delete(ctx context.Context, id string) error {
	return translate(s.store.DeleteTask(ctx, id))
}

type ScanResult struct {
	Filename         string               `json:"filename"`
	Characters       int                  `json:"characters"`
	OverallRiskLevel string               `json:"overall_risk_level"`
	Risks            []oracle.RiskFinding `json:"risks"`
}

// Scan runs only the local rule engine over a document. Nothing is stored.
func (s *Contracts) Scan(filename string, data []byte) (*ScanResult, error) {
	text, err := contract.Decode(filename, data)
	if err != nil {
		return nil, err
	}
	n := utils.RuneLen(text)
	if n < s.minTextLength {
		return nil, fmt.Errorf("%w (length: %d)", contract.ErrTextTooShort, n)
	}

	findings := contract.Scan(text)
	return &ScanResult{
		Filename:         filename,
		Characters:       n,
		OverallRiskLevel: contract.AggregateLevel(nil, findings),
		Risks:            findings,
	}, nil
}

func toRisk(taskID string, f oracle.RiskFinding) models.ContractRisk {
	return models.ContractRisk{
		ID:           uuid.NewString(),
		TaskID:       taskID,
		ClauseID:     f.ClauseID,
		ClauseText:   f.ClauseText,
		RiskCategory: f.RiskCategory,
		RiskLevel:    f.RiskLevel,
		RiskReason:   f.RiskReason,
		Explanation:  f.Explanation,
		Confidence:   f.Confidence,
	}
}
