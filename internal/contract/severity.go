package contract

import (
	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/internal/storage/models"
)

// AggregateLevel is High when any chunk verdict or finding is High, else
// Medium when any is Medium, else Low.
func AggregateLevel(chunkLevels []string, risks []oracle.RiskFinding) string {
	has := func(level string) bool {
		for _, l := range chunkLevels {
			if l == level {
				return true
			}
		}
		for _, r := range risks {
			if r.RiskLevel == level {
				return true
			}
		}
		return false
	}

	switch {
	case has(models.RiskHigh):
		return models.RiskHigh
	case has(models.RiskMedium):
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
