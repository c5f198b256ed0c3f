package loam

// InstructionMetadata is the frontmatter of an instruction document.
// It uses "mapstructure" tags to match the YAML keys.
type InstructionMetadata struct {
	ID string `json:"id" mapstructure:"id"`
	// Mode selects which handler the document instructs ("gathering" or "generating").
	// When empty, the document ID is used.
	Mode        string `json:"mode" mapstructure:"mode"`
	Description string `json:"description" mapstructure:"description"`
}
