package oracle

import (
	"fmt"
	"strings"
)

const extractionPromptTemplate = `你是一名数据提取专家兼风险分析师。
输入是从网页抓取的原始 Markdown，其中混有导航菜单、广告、侧边栏等噪音。

%s

【任务】
提取关键情报，输出结构化 JSON。

【规则】
1. 清洗：去掉导航、"相关新闻"、订阅入口、广告和页脚。
2. 正文完整：main_content 必须是完整的文章正文，不得删减或概括。
3. 语言：main_content 保留原文语言；summary 与 risk_hint 使用中文。
4. 日期：注意各地日期写法，例如 "08/01/2026"、"January 8, 2026"、"2026-01-08"，结合上下文判断日月顺序，统一输出 YYYY-MM-DD。

【输出 JSON】
{
    "title": "原标题",
    "title_zh": "标题中文译文（原标题为中文则照抄）",
    "publish_date": "YYYY-MM-DD，没有则为 null",
    "author": "作者，没有则为 Unknown",
    "content_type": "News / Policy / Regulation / Analysis",
    "keywords": ["标签1", "标签2", "标签3"],
    "summary": "中文摘要，100字以内",
    "risk_hint": "一句话中文风险提示，说明其战略风险含义",
    "main_content": "清洗后的完整正文，保留 Markdown 结构",
    "translated_content": "main_content 的中文译文，保留 Markdown 结构",
    "confidence": 0.0
}`

func extractionPrompt(contentHints string) string {
	return fmt.Sprintf(extractionPromptTemplate, contentHints)
}

const classificationPromptTemplate = `你是网页结构分析专家。请判断页面类型并提取文章链接。

【目标URL】%s
【站点】%s

%s

【页面类型】
1. 列表页：URL 较短，常含 index、list、category、section；有大量结构重复的链接块；有分页。
2. 文章页：URL 较长，含标题 slug 或唯一 ID；有成段的连续正文；有明确的标题、日期或作者。

【链接提取】
1. 只要指向具体文章、新闻或公告的链接，这类 URL 通常带日期、ID 或标题 slug。
2. 忽略：javascript 伪链接、# 锚点、导航菜单（首页、关于我们、联系方式）、登录注册订阅、社交分享、分类标签作者页、图片视频下载。
3. 最多提取 5 到 10 个最相关的文章链接。

【输出 JSON】
{
    "page_type": "list" 或 "article",
    "links": ["完整URL1", "完整URL2"],
    "reason": "判断依据"
}

links 中必须是包含协议和域名的完整 URL，相对路径请补全。`

func classificationPrompt(pageURL, siteName, linkHints string) string {
	return fmt.Sprintf(classificationPromptTemplate, pageURL, siteName, linkHints)
}

func classificationInput(pageURL string, links []Link, preview string) string {
	var lines strings.Builder
	for i, l := range links {
		if i > 0 {
			lines.WriteByte('\n')
		}
		fmt.Fprintf(&lines, "- %s: %s", l.Text, l.Href)
	}

	return fmt.Sprintf("请分析以下网页：\n\n【页面URL】%s\n\n【页面中提取的所有链接】（已过滤无效链接）\n%s\n\n【页面内容摘要】\n%s\n",
		pageURL, lines.String(), preview)
}

const contractPrompt = `# 角色
你代表投资方，是拥有二十年跨境项目经验的国际合同法专家，擅长发现：
- 境外新能源合同中的结构性不利条款
- 表面中性、实则风险很高的隐性条款
- 多个条款组合后形成的系统性风险

你的工作是识别风险、定位条款、解释影响，不是给出法律结论。

# 约束
1. 不输出法律结论或责任认定。
2. 输出仅作为风险提示，供人工复核。
3. 必须引用原文关键表述作为证据。
4. 信息不足时明确写"信息不足，无法判断"。
5. 全部使用中文。
6. 只报告真实风险，不为凑数列出无关条款。

# 审查维度（按优先级）
高：单方权利（单方解约、调价、变更）；责任失衡（免责、无限责任、违约金不对等）；定价与金融风险（汇率承担、币种错配、调价机制）。
中：政府承诺是否有约束力；担保方式与失效条件；不可抗力定义是否过宽、是否含政策变更。
低（仅明显异常时报告）：争议解决的管辖与仲裁方式；合同转让限制。

# 要求
1. clause_text 逐字引用原文，不改写不概括。
2. 原文有条款编号（如"第X条"、"X.X"）时一并给出。
3. 解释条款为何对投资方不利，以及可能的商业后果。
4. 行业惯例或对双方公平的条款不报告。

# 输出 JSON
{
    "risks": [
        {
            "risk_category": "风险类别",
            "risk_level": "High / Medium / Low",
            "clause_id": "条款编号，没有则填 无",
            "clause_text": "逐字引用的原文",
            "risk_reason": "一句话风险点",
            "explanation": "1）条款含义 2）对投资方的不利影响 3）可能的商业后果",
            "confidence": 0.0
        }
    ],
    "overall_risk_level": "High / Medium / Low",
    "summary": "两三句整体评估"
}

未发现明显风险时 risks 为空数组、overall_risk_level 为 Low。最多返回 5 个风险点，按严重程度排序。`

func contractInput(context, contractType, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "【合同名称】%s\n", context)
	if contractType != "" {
		fmt.Fprintf(&b, "【合同类型】%s\n", contractType)
	}
	fmt.Fprintf(&b, "\n【合同条款内容】\n%s", text)
	return b.String()
}

const relevancePrompt = `You are a strategic risk analyst. Decide whether the input text carries high-value strategic risk intelligence such as policy changes, geopolitical shifts or economic legislation.
Return JSON: {"value_level": "High" or "Low", "reason": "short explanation"}`
