package entity

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// ToolCall is a function call requested by the model. Arguments is nil when
// the model sent arguments that could not be decoded.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type Completion struct {
	Content    string
	ToolCalls  []ToolCall
	Model      string
	TokenCount int
}

type ToolParam struct {
	Name        string
	Description string
	Required    bool
}

// ToolSpec describes a callable function to the model. All parameters are strings.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

// JSONSchema renders the parameters as an OpenAI-style JSON schema object.
func (s ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := []string{}
	for _, p := range s.Params {
		props[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
