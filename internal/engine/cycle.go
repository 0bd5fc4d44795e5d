package engine

// DefaultMaxDepth is the default maximum rule nesting depth.
const DefaultMaxDepth = 32

// firingPath is the chain of (rule, action signature) pairs from the
// top-level action down to the current one. It is an immutable linked list,
// so sibling branches share their common prefix and never see each other's
// entries.
//
// A rule that would fire an action whose signature is already on its own
// ancestor path for the same rule is a cycle: the cascade would repeat
// forever.
type firingPath struct {
	rule      string
	signature string
	parent    *firingPath
}

// extend returns a new path with (rule, signature) appended.
func (p *firingPath) extend(rule, signature string) *firingPath {
	return &firingPath{rule: rule, signature: signature, parent: p}
}

// contains reports whether (rule, signature) is on the path.
func (p *firingPath) contains(rule, signature string) bool {
	for n := p; n != nil; n = n.parent {
		if n.rule == rule && n.signature == signature {
			return true
		}
	}
	return false
}

// rules returns rule names from the root down, for diagnostics.
func (p *firingPath) rules() []string {
	var out []string
	for n := p; n != nil; n = n.parent {
		out = append(out, n.rule)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
