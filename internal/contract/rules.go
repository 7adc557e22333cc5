package contract

import (
	"regexp"
	"unicode/utf8"

	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/pkg/utils"
)

const (
	ruleWindow     = 40
	ruleClauseMax  = 120
	ruleConfidence = 0.85
)

// Rule is one deterministic clause check.
type Rule struct {
	ID          string
	Pattern     *regexp.Regexp
	Category    string
	Level       string
	Explanation string
}

func rule(id, pattern, category, level, explanation string) Rule {
	return Rule{
		ID:          id,
		Pattern:     regexp.MustCompile(`(?i)` + pattern),
		Category:    category,
		Level:       level,
		Explanation: explanation,
	}
}

// Rules are evaluated in this order; the order is also the report order.
var Rules = []Rule{
	rule("R1", `(terminate|unilateral|单方.{0,5}解约|无过错.{0,5}解约|任意.{0,5}终止|单方.{0,5}终止)`,
		"单方解约权", models.RiskHigh, "合同包含单方解约或无过错解约条款，可能导致对方随时终止合同而无需承担责任。"),
	rule("R2", `(price.{0,10}adjust|单方.{0,5}调价|可.{0,10}调整价格|价格.{0,5}变更|单方.{0,5}定价)`,
		"单方调价权", models.RiskHigh, "合同允许单方调整价格，可能导致成本不可控。"),
	rule("R6", `(may amend|unilateral.{0,5}(change|modify)|单方.{0,5}(修改|变更|调整)|可.{0,10}(修改|变更).{0,5}条款)`,
		"单方变更权", models.RiskHigh, "合同允许单方修改条款，可能导致权益受损。"),
	rule("R3", `(currency|fx|汇率|定价货币|支付货币|币种|exchange rate|外汇)`,
		"定价与汇率风险", models.RiskMedium, "合同涉及多种货币或汇率条款，可能存在汇率波动风险。"),
	rule("R4", `(liabilit|indemnif|免责|不承担.{0,5}责任|责任.{0,5}免除|概不负责)`,
		"免责条款", models.RiskHigh, "合同包含免责条款，可能导致对方不承担应有责任。"),
	rule("R7", `(liquidated damages|penalt|late fee|违约金|滞纳金|罚金|逾期.{0,5}赔偿)`,
		"违约金条款", models.RiskHigh, "合同包含违约金或罚金条款，需评估金额合理性。"),
	rule("R8", `(unlimited liabilit|no limit|not limited|不设上限|无上限|不受限制|无限.{0,5}责任)`,
		"无限责任风险", models.RiskHigh, "合同责任不设上限，可能面临无限赔偿风险。"),
	rule("R5", `(guarantee|security|担保|保证责任|无担保|履约保函|保证金)`,
		"担保缺失", models.RiskMedium, "合同担保条款缺失或弱化，增加履约风险。"),
	rule("R12", `(government.{0,10}commit|政府.{0,5}承诺|政策.{0,5}保障|公共部门|sovereign|政府.{0,5}保证)`,
		"政府承诺风险", models.RiskMedium, "涉及政府承诺条款，需评估承诺的法律约束力。"),
	rule("R13", `(force majeure|不可抗力|政策变更|法律变更|change.{0,5}law|法规.{0,5}变化)`,
		"不可抗力滥用", models.RiskMedium, "不可抗力或政策变更条款可能被滥用，需审查定义范围。"),
	rule("R14", `(local.{0,5}content|本地化|localization|当地.{0,5}比例|环保|environmental|本地.{0,5}采购)`,
		"本地化与环保责任", models.RiskMedium, "本地化或环保要求可能增加履约成本和合规风险。"),
	rule("R9", `(arbitration|governing law|jurisdiction|venue|仲裁|管辖|适用法律|法院|争议解决)`,
		"争议解决条款", models.RiskMedium, "需审查管辖地、适用法律及争议解决方式是否对己方有利。"),
	rule("R10", `(exclusive|exclusivity|non-compete|排他|独家|竞业|独占)`,
		"排他/竞业限制", models.RiskMedium, "合同包含排他或竞业限制条款，可能限制业务发展。"),
	rule("R11", `(assign(ment)?|transfer|合同.{0,3}转让|权利.{0,3}转让|义务.{0,3}转让)`,
		"合同转让", models.RiskLow, "合同包含转让条款，需确认转让条件和限制。"),
}

// Scan applies every rule to text and reports at most one finding per rule,
// taken around its first match.
func Scan(text string) []oracle.RiskFinding {
	findings := make([]oracle.RiskFinding, 0, len(Rules))
	for _, r := range Rules {
		loc := r.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		findings = append(findings, oracle.RiskFinding{
			RiskCategory: r.Category,
			RiskLevel:    r.Level,
			ClauseID:     r.ID,
			ClauseText:   "「" + matchWindow(text, loc[0], loc[1]) + "」",
			RiskReason:   "规则检测: " + r.Category,
			Explanation:  r.Explanation,
			Confidence:   ruleConfidence,
		})
	}
	return findings
}

// matchWindow returns the text ruleWindow characters either side of the byte
// range [start, end), whitespace-collapsed and capped at ruleClauseMax
// characters.
func matchWindow(text string, start, end int) string {
	from := start
	for i := 0; i < ruleWindow && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for i := 0; i < ruleWindow && to < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}

	window := utils.CollapseWhitespace(text[from:to])
	if utils.RuneLen(window) > ruleClauseMax {
		window = utils.TruncateRunes(window, ruleClauseMax) + "..."
	}
	return window
}
