package vars

import (
	"regexp"
)

// refPattern matches {{#node_id.var#}} references. Node IDs may contain
// dots (container scoping); the variable name is the final segment.
var refPattern = regexp.MustCompile(`\{\{#([a-zA-Z0-9_.-]+)#\}\}`)

// ConvertTemplate replaces every {{#node_id.var#}} occurrence in s with
// the value from the pool. Unresolved references substitute an empty
// string: templates are user-authored and partial evaluation must not
// crash a run.
func (p *Pool) ConvertTemplate(s string) string {
	if s == "" {
		return ""
	}
	return refPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := match[3 : len(match)-3]
		sel, ok := ParseSelector(ref)
		if !ok {
			return ""
		}
		v, ok := p.Get(sel)
		if !ok {
			return ""
		}
		return v.String()
	})
}

// TemplateRefs returns the selectors referenced by a template string,
// in order of appearance. Malformed references are skipped.
func TemplateRefs(s string) []Selector {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	refs := make([]Selector, 0, len(matches))
	for _, m := range matches {
		if sel, ok := ParseSelector(m[1]); ok {
			refs = append(refs, sel)
		}
	}
	return refs
}
