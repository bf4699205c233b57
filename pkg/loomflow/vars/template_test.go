package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestConvertTemplate verifies reference substitution.
func TestConvertTemplate(t *testing.T) {
	p := NewPool()
	p.Add(Selector{NodeID: "start", Name: "name"}, StringValue("world"))
	p.Add(Selector{NodeID: "calc", Name: "n"}, NumberValue(7))

	testCases := []struct {
		name     string
		template string
		want     string
	}{
		{"plain text", "no refs here", "no refs here"},
		{"single ref", "hello {{#start.name#}}", "hello world"},
		{"multiple refs", "{{#start.name#}}: {{#calc.n#}}", "world: 7"},
		{"missing ref", "got [{{#nope.x#}}]", "got []"},
		{"empty", "", ""},
		{"malformed ref", "{{#noname#}}", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.ConvertTemplate(tc.template))
		})
	}
}

// TestConvertTemplate_DottedScope verifies references into container
// scopes where node IDs themselves contain dots.
func TestConvertTemplate_DottedScope(t *testing.T) {
	p := NewPool()
	p.Add(Selector{NodeID: "iter.0", Name: "result"}, StringValue("a"))

	assert.Equal(t, "a", p.ConvertTemplate("{{#iter.0.result#}}"))
}

// TestTemplateRefs verifies extraction of referenced selectors.
func TestTemplateRefs(t *testing.T) {
	refs := TemplateRefs("{{#a.x#}} and {{#b.y#}} and {{#bad#}}")
	assert.Equal(t, []Selector{
		{NodeID: "a", Name: "x"},
		{NodeID: "b", Name: "y"},
	}, refs)
}
