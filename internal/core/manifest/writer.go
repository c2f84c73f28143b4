package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Write renders the manifest in canonical key order. Empty keys are
// omitted, unknown keys come last sorted by name, and multi-line values
// are indented the way configparser expects.
func (m *Manifest) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "[general]")

	for _, key := range canonicalKeys {
		value, _ := m.get(key)
		if value == "" {
			continue
		}
		writeKey(bw, key, value)
	}

	extras := make([]string, 0, len(m.Extra))
	for key := range m.Extra {
		extras = append(extras, key)
	}
	sort.Strings(extras)
	for _, key := range extras {
		if m.Extra[key] != "" {
			writeKey(bw, key, m.Extra[key])
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func writeKey(w *bufio.Writer, key, value string) {
	lines := strings.Split(value, "\n")
	fmt.Fprintf(w, "%s=%s\n", key, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

// Save writes the manifest to path.
func (m *Manifest) Save(path string) error {
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}
