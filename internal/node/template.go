package node

import (
	"fmt"
	"os"
	"path/filepath"

	"fluxgraph.dev/flux/internal/message"
)

// CompileTemplate expands $name placeholders in templateText using values,
// then writes the result to workDir/outputName. This is the node-level
// convenience many plugins use to drive external processes from a static
// resource template.
func (n *Node) CompileTemplate(templateText string, values map[string]string, outputName string) (string, error) {
	expanded := os.Expand(templateText, func(name string) string {
		return values[name]
	})

	if n.workDir == "" {
		return "", fmt.Errorf("node %q: no working directory assigned", n.Name)
	}

	dst := filepath.Join(n.workDir, outputName)
	if err := os.WriteFile(dst, []byte(expanded), 0o644); err != nil {
		return "", fmt.Errorf("node %q: write template output: %w", n.Name, err)
	}
	return dst, nil
}

// dump writes msg to a file named by its id under the node's working
// directory. Best-effort: serialization and write errors are silently
// ignored, never surfaced to the data path.
func (n *Node) dump(msg *message.Message) {
	if n.workDir == "" {
		return
	}
	out, err := msg.ToJSON(nil, "")
	if err != nil {
		return
	}
	path := filepath.Join(n.workDir, fmt.Sprintf("%d.json", msg.ID()))
	_ = os.WriteFile(path, []byte(out), 0o644)
}
