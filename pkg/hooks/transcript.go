package hooks

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
)

// transcriptLine is the subset of a host transcript entry we read.
// Content may be a plain string or a list of typed blocks; both shapes
// appear in practice.
type transcriptLine struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

const maxTranscriptLine = 1024 * 1024

// readAssistantMessages extracts the assistant's text messages from a
// JSONL transcript. Missing files and unparseable lines yield whatever
// could be read; the summary generator tolerates an empty slice.
func readAssistantMessages(path string) []string {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)
	for scanner.Scan() {
		var line transcriptLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Role != "assistant" {
			continue
		}
		if text := contentText(line.Content); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// contentText flattens a transcript content field to plain text.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
