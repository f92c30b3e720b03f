package pipeline

import "fluxgraph.dev/flux/internal/component"

// LinkSpec is one directed edge in a pipeline's wiring.
type LinkSpec struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PipelineConfig is the "pipeline" object inside Config.
type PipelineConfig struct {
	Name   string                `json:"name"`
	ID     string                `json:"id"`     // manager-assigned; UUIDv4
	Folder string                `json:"folder"` // manager-assigned
	Nodes  []component.NodeSpec  `json:"nodes"`
	Links  []LinkSpec            `json:"links"`
}

// Config is the persisted/accepted pipeline JSON document.
type Config struct {
	Version  string         `json:"version"`
	Plugins  []string       `json:"plugins"`
	Pipeline PipelineConfig `json:"pipeline"`
}
