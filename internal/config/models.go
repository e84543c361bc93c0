package config

// Supported model identifiers on the GitHub Models inference endpoint.
const (
	ModelGPT4oMini = "gpt-4o-mini"
	ModelGPT4o     = "gpt-4o"
	ModelO1Mini    = "o1-mini"
	ModelO1        = "o1"
)

// DefaultModel is used when no model is configured or selected.
const DefaultModel = ModelGPT4oMini

// Models returns the supported model identifiers in display order.
func Models() []string {
	return []string{ModelGPT4oMini, ModelGPT4o, ModelO1Mini, ModelO1}
}

// ValidModel reports whether name is a supported model identifier.
func ValidModel(name string) bool {
	switch name {
	case ModelGPT4oMini, ModelGPT4o, ModelO1Mini, ModelO1:
		return true
	}
	return false
}
