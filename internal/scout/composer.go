package scout

import (
	_ "embed"
	"strings"

	"github.com/spigell/scout-responder/internal/ai"
)

//go:embed message.txt
var defaultTemplate string

const (
	DefaultJobSuffix    = "サプライチェーンの未来を創るプロダクトマネージャー募集"
	DefaultPlaceholder  = "{CUSTOM_MESSAGE}"
	DefaultMessage      = "候補者さまのご経験に興味を持ちました。ぜひ一度、弊社の事業内容や今後の展望についてお話しさせていただけないでしょうか。"
	DefaultOpenBracket  = "【"
	DefaultCloseBracket = "】"
	skippedTitle        = "N/A"
	skippedBody         = "(No message)"
)

// Composer builds the subject line and body of a scout message. The
// template and default message are static; only the keyword and the custom
// paragraph come from the evaluation.
type Composer struct {
	JobSuffix      string
	Template       string
	Placeholder    string
	DefaultMessage string
	OpenBracket    string
	CloseBracket   string
}

func NewComposer() *Composer {
	return &Composer{
		JobSuffix:      DefaultJobSuffix,
		Template:       defaultTemplate,
		Placeholder:    DefaultPlaceholder,
		DefaultMessage: DefaultMessage,
		OpenBracket:    DefaultOpenBracket,
		CloseBracket:   DefaultCloseBracket,
	}
}

// Normalize wraps keyword in exactly one pair of brackets. Already bracketed
// input is returned unchanged, so Normalize(Normalize(k)) == Normalize(k).
func (c *Composer) Normalize(keyword string) string {
	keyword = strings.TrimSpace(keyword)
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(keyword, c.OpenBracket), c.CloseBracket))
	if inner == "" {
		return ""
	}
	return c.OpenBracket + inner + c.CloseBracket
}

// Title is the bracketed keyword followed by the job suffix.
func (c *Composer) Title(ev *ai.Evaluation) string {
	var keyword string
	if ev != nil {
		keyword = ev.ScoutTitle
		if strings.TrimSpace(keyword) == "" {
			keyword = ev.TitleKeyword
		}
	}
	return c.Normalize(keyword) + c.JobSuffix
}

// Body substitutes the custom message, or the default one, into the template.
func (c *Composer) Body(ev *ai.Evaluation) string {
	message := c.DefaultMessage
	if ev != nil && strings.TrimSpace(ev.ScoutMessage) != "" {
		message = strings.TrimSpace(ev.ScoutMessage)
	}
	return strings.Replace(c.Template, c.Placeholder, message, 1)
}

// Skipped returns the title and body recorded for candidates that are not
// scouted.
func Skipped() (title, body string) {
	return skippedTitle, skippedBody
}
