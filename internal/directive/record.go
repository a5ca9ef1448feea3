package directive

// FunctionRecord is everything internal/codegen needs to turn one
// "use sandbox" annotated function into a stub and a generated module
// export. It is the Go-side equivalent of spec.md's data model row for
// an annotated function.
type FunctionRecord struct {
	FnID string

	// Name is the function's declared or inferred name. Empty only for
	// anonymous function expressions that are never assigned a binding,
	// which the collector rejects before producing a record.
	Name string

	// ScopePath is the chain of enclosing function/arrow names from the
	// module top level down to (but not including) this function,
	// joined with "." by FnID. A top-level function has an empty path.
	ScopePath []string

	ParamNames []string

	// ParamListSrc is the verbatim source text of the parameter list,
	// parentheses excluded, preserved for the stub so destructuring and
	// default values keep their original call signature.
	ParamListSrc string

	// ClosureVars are outer-scope identifiers the body references that
	// are not declared anywhere within the function's own scope subtree
	// and are not in the fixed global set.
	ClosureVars []string

	// BodySource is the verbatim text between the function body's braces,
	// directive statement excluded.
	BodySource string

	IsAsync    bool
	IsExported bool
	IsDefault  bool

	// IsArrow distinguishes `const f = async (x) => { ... }` bindings
	// from `async function f(x) { ... }` declarations, since the stub
	// needs to preserve the original declaration form.
	IsArrow bool

	// SourceFile is the path of the file the function was found in,
	// relative to the project root, used by FnID's digest and by the
	// bundler's staging layout.
	SourceFile string

	// StmtPos/StmtEnd bound the full declaration/assignment statement in
	// the original source, so codegen can replace it in place with the
	// stub.
	StmtPos int
	StmtEnd int
}

// fullPath returns ScopePath with Name appended, the path used both by
// fnID generation and by nested closure resolution against ancestors.
func (r *FunctionRecord) fullPath() []string {
	return append(append([]string{}, r.ScopePath...), r.Name)
}
