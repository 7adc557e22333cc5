// Package contract finds risky clauses in uploaded contracts, through the
// extraction oracle and through a fixed local rule set.
package contract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

// ErrTextTooShort means the decoded document is too short to be a contract,
// which usually signals a decoding failure.
var ErrTextTooShort = errors.New("contract text too short")

const (
	clauseKeyRunes = 80
	noClauseID     = "无"

	SourceOracle = "oracle"
	SourceRules  = "rules"
)

// RiskOracle analyses one chunk of desensitized contract text.
type RiskOracle interface {
	ExtractContractRisks(ctx context.Context, text, contextName, contractType string) oracle.ContractAnalysis
}

type Options struct {
	MinTextLength     int
	ChunkSize         int
	MaxChunks         int
	LocalRuleFallback bool
}

func DefaultOptions() Options {
	return Options{MinTextLength: 50, ChunkSize: 6000, MaxChunks: 3, LocalRuleFallback: true}
}

type Report struct {
	Risks        []oracle.RiskFinding
	OverallLevel string
	Chunks       int
	Source       string
}

type Analyzer struct {
	oracle RiskOracle
	opts   Options
}

func NewAnalyzer(o RiskOracle, opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = def.MinTextLength
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = def.MaxChunks
	}
	return &Analyzer{oracle: o, opts: opts}
}

// Analyze runs the oracle over the first chunks of the desensitized text and
// merges the findings. When the oracle finds nothing and the local fallback
// is enabled, the rule engine's findings are reported instead.
func (a *Analyzer) Analyze(ctx context.Context, documentName, text string) (*Report, error) {
	if n := utils.RuneLen(text); n < a.opts.MinTextLength {
		return nil, fmt.Errorf("%w (length: %d)", ErrTextTooShort, n)
	}

	chunks := Chunk(Desensitize(text), a.opts.ChunkSize)
	if len(chunks) > a.opts.MaxChunks {
		logger.Info("Contract truncated to leading chunks",
			zap.String("document", documentName),
			zap.Int("chunks", len(chunks)),
			zap.Int("analysed", a.opts.MaxChunks),
		)
		chunks = chunks[:a.opts.MaxChunks]
	}

	var (
		collected []oracle.RiskFinding
		levels    []string
	)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		contextName := fmt.Sprintf("%s (第%d部分，共%d部分)", documentName, i+1, len(chunks))
		result := a.oracle.ExtractContractRisks(ctx, chunk, contextName, "")
		collected = append(collected, result.Risks...)
		if result.OverallRiskLevel != "" {
			levels = append(levels, result.OverallRiskLevel)
		}
	}

	report := &Report{
		Risks:        MergeFindings(collected),
		OverallLevel: AggregateLevel(levels, collected),
		Chunks:       len(chunks),
		Source:       SourceOracle,
	}

	if len(report.Risks) == 0 && a.opts.LocalRuleFallback {
		local := Scan(text)
		if len(local) > 0 {
			logger.Info("Oracle found no risks, using local rules",
				zap.String("document", documentName),
				zap.Int("findings", len(local)),
			)
			report.Risks = local
			report.OverallLevel = AggregateLevel(nil, local)
			report.Source = SourceRules
		}
	}

	return report, nil
}

// MergeFindings drops findings without clause text and repeats of the same
// leading clause text, keeping the first. Missing clause ids are numbered
// 风险点-N by position among the kept findings.
func MergeFindings(findings []oracle.RiskFinding) []oracle.RiskFinding {
	seen := make(map[string]struct{}, len(findings))
	out := make([]oracle.RiskFinding, 0, len(findings))
	for _, f := range findings {
		key := utils.TruncateRunes(f.ClauseText, clauseKeyRunes)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if f.ClauseID == "" || f.ClauseID == noClauseID {
			f.ClauseID = fmt.Sprintf("风险点-%d", len(out)+1)
		}
		if f.RiskLevel == "" {
			f.RiskLevel = models.RiskLow
		}
		out = append(out, f)
	}
	return out
}
