package entity

type Source struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ToolInvocation records one model-requested function call and what the
// handler returned for it.
type ToolInvocation struct {
	FunctionName string         `json:"function_name"`
	Arguments    map[string]any `json:"arguments"`
	Response     any            `json:"response"`
}

type AnswerResult struct {
	Answer            string           `json:"answer"`
	Sources           []Source         `json:"sources,omitempty"`
	FollowUpQuestions []string         `json:"follow_up_questions,omitempty"`
	ToolOutputs       []ToolInvocation `json:"tool_outputs"`
}

// MessageResult builds a result that carries only a fixed answer text.
func MessageResult(answer string) *AnswerResult {
	return &AnswerResult{Answer: answer, ToolOutputs: []ToolInvocation{}}
}

// Outcome tells the caller how a pipeline run ended.
type Outcome int

const (
	OutcomeAnswered Outcome = iota
	OutcomeCached
	OutcomeNoSources
	OutcomeQuotaExceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeCached:
		return "cached"
	case OutcomeNoSources:
		return "no_sources"
	case OutcomeQuotaExceeded:
		return "quota_exceeded"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}
