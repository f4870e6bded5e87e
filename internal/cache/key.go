package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type keyMaterial struct {
	StepID string      `json:"stepId"`
	ToolID string      `json:"toolId"`
	Inputs interface{} `json:"inputs"`
}

// GenerateKey derives the cache key of a step.
//
// With a custom key the result is "<stepID>:<customKey>". Otherwise it is
// "<stepID>:" followed by the hex SHA-256 of the canonical JSON of step id,
// tool id and resolved inputs. Object keys are sorted when encoding, so the
// key does not depend on map iteration order.
func GenerateKey(stepID, toolID string, inputs interface{}, customKey string) string {
	if customKey != "" {
		return stepID + ":" + customKey
	}

	data, err := json.Marshal(keyMaterial{StepID: stepID, ToolID: toolID, Inputs: inputs})
	if err != nil {
		// fmt prints maps with sorted keys, which keeps the fallback stable.
		data = []byte(fmt.Sprintf("%s|%s|%#v", stepID, toolID, inputs))
	}
	sum := sha256.Sum256(data)
	return stepID + ":" + hex.EncodeToString(sum[:])
}
