package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced object", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading and trailing prose", "noise [1,2,3] trailing", "[1,2,3]"},
		{"empty input", "", "{}"},
		{"whitespace only", "  \n\t ", "{}"},
		{"plain text without brackets", "no json here", "no json here"},
		{"object inside prose", "Sure, here it is: {\"k\":\"v\"} hope that helps", `{"k":"v"}`},
		{"array before object picks earliest start", "[1] and {\"a\":2}", `[1] and {"a":2}`},
		{"already clean", `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeJSON(tt.in))
		})
	}
}

// 去掉围栏后的输出是不动点：再清洗一次结果不变。
func TestSanitizeJSONIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"a\":1}\n```",
		"noise [1,2,3] trailing",
		"",
		"no json here",
		`{"nested":{"b":[1,2]}}`,
	}
	for _, in := range inputs {
		once := SanitizeJSON(in)
		assert.Equal(t, once, SanitizeJSON(once), "input %q", in)
	}
}
