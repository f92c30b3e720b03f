package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgraph.dev/flux/internal/telemetry"
)

func TestManagerWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.csv")
	m, err := telemetry.NewManager(path)
	require.NoError(t, err)

	m.Record([]telemetry.Record{{Ts: 1.5, Event: "rx", Node: "src", MsgID: 1, Size: 10}})
	m.Stop()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "ts,evt,node,origin,msg_id,src_id,size")
	assert.Contains(t, string(contents), "rx")
}

func TestManagerAppendsWithoutDuplicatingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.csv")
	m1, err := telemetry.NewManager(path)
	require.NoError(t, err)
	m1.Record([]telemetry.Record{{Event: "rx", Node: "a"}})
	m1.Stop()

	m2, err := telemetry.NewManager(path)
	require.NoError(t, err)
	m2.Record([]telemetry.Record{{Event: "tx", Node: "b"}})
	m2.Stop()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	count := 0
	for _, line := range splitLines(string(contents)) {
		if line == "ts,evt,node,origin,msg_id,src_id,size" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
