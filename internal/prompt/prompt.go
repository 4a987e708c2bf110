// Package prompt renders generation requests into the instruction sent to a chat model.
package prompt

import (
	"strings"
	"text/template"

	"github.com/UnknownOlympus/hermes/internal/models"
)

const emailTemplate = `请帮我写一封邮件给{{.Recipient}}，主题是"{{.Subject}}"。
邮件背景：{{.Context}}
语气要求：{{.Tone}}
请确保邮件格式完整，包含称呼、正文、结尾。
输出格式要求：
- 称呼：以"亲爱的{{.Recipient}}"开头
- 正文：简洁明了，突出重点
- 结尾：礼貌的结束语
- 不要添加额外的说明文字，直接输出邮件内容`

var emailTmpl = template.Must(template.New("email").Parse(emailTemplate))

// Build renders req into the email instruction. An empty tone is replaced by
// models.DefaultTone. The output is a pure function of req.
func Build(req models.GenerationRequest) string {
	var sb strings.Builder
	// Executing a parsed template over a plain struct into a strings.Builder cannot fail.
	_ = emailTmpl.Execute(&sb, req.WithDefaults())
	return sb.String()
}
