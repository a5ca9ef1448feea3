package directive

// scope is one frame of the immutable cactus stack described in spec.md
// §4.1: each function body gets a new scope whose parent is the scope
// active where that function was defined.
type scope struct {
	parent  *scope
	names   map[string]bool
	fnNames map[string]bool // nested function/arrow names declared in this scope, for sibling resolution
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: map[string]bool{}, fnNames: map[string]bool{}}
}

func (s *scope) declare(name string) {
	if name != "" {
		s.names[name] = true
	}
}

// resolves reports whether name is declared in this scope or any ancestor.
func (s *scope) resolves(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.names[name] || sc.fnNames[name] {
			return true
		}
	}
	return false
}
