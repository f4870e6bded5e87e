package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey_CustomKey(t *testing.T) {
	assert.Equal(t, "region:main", GenerateKey("region", "ui/select", map[string]interface{}{"x": 1}, "main"))
}

func TestGenerateKey_Deterministic(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1, "nested": map[string]interface{}{"y": true, "x": []interface{}{1, 2}}}
	b := map[string]interface{}{"nested": map[string]interface{}{"x": []interface{}{1, 2}, "y": true}, "a": 1, "b": 2}

	keyA := GenerateKey("s1", "echo", a, "")
	keyB := GenerateKey("s1", "echo", b, "")

	assert.Equal(t, keyA, keyB, "map key order must not affect the key")
	assert.True(t, strings.HasPrefix(keyA, "s1:"))
	assert.Len(t, strings.TrimPrefix(keyA, "s1:"), 64)
}

func TestGenerateKey_Sensitivity(t *testing.T) {
	base := GenerateKey("s1", "echo", map[string]interface{}{"msg": "hi"}, "")

	tests := map[string]string{
		"different inputs": GenerateKey("s1", "echo", map[string]interface{}{"msg": "ho"}, ""),
		"different tool":   GenerateKey("s1", "shout", map[string]interface{}{"msg": "hi"}, ""),
		"different step":   GenerateKey("s2", "echo", map[string]interface{}{"msg": "hi"}, ""),
		"array order":      GenerateKey("s1", "echo", []interface{}{"hi", "msg"}, ""),
	}
	for name, key := range tests {
		assert.NotEqual(t, base, key, name)
	}
}

func TestGenerateKey_UnencodableInputs(t *testing.T) {
	in := map[string]interface{}{"ch": make(chan int)}
	key := GenerateKey("s1", "echo", in, "")
	assert.True(t, strings.HasPrefix(key, "s1:"))
}
