package formatting

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	textutil "stepflow/pkg/strings"
)

// PrettyJSON formats any value as indented JSON for human-readable display.
// It handles marshaling errors gracefully by falling back to fmt.Sprintf.
//
// Example:
//
//	data := map[string]interface{}{"name": "test", "value": 42}
//	fmt.Println(formatting.PrettyJSON(data))
//	// Output:
//	// {
//	//   "name": "test",
//	//   "value": 42
//	// }
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// PrettyYAML formats v as block-style YAML. Values are encoded through their
// JSON form so custom JSON marshalers and field names apply, and object keys
// keep their JSON order.
func PrettyYAML(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return string(data)
	}
	blockStyle(&node)

	out, err := yaml.Marshal(&node)
	if err != nil {
		return string(data)
	}
	return string(out)
}

// blockStyle clears the flow and quoting styles yaml.v3 keeps from JSON input.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// compactValue renders a step output on one line, truncated to max runes.
func compactValue(v interface{}, max int) string {
	if v == nil {
		return "-"
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprintf("%v", val)
		} else {
			s = string(b)
		}
	}
	return textutil.SingleLine(s, max)
}

func truncate(s string, max int) string {
	return textutil.SingleLine(s, max)
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func runStatus(success bool) string {
	if success {
		return "succeeded"
	}
	return "failed"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
