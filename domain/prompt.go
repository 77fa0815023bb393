package domain

// Prompt is the fully rendered input for one generation call: the
// participant persona (plus locale directive) and the user message with
// its shared context.
type Prompt struct {
	System string
	User   string
}
