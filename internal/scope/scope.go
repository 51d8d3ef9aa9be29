// Package scope defines the build phases a dependency can be declared for and
// the two relations that govern them: which declared scopes appear on a
// requested classpath, and which scope a transitive dependency inherits.
package scope

import "fmt"

// Scope is the build phase a dependency is needed for. The zero value is the
// absent scope, which is never on any classpath and never propagates.
type Scope string

const (
	None     Scope = ""
	Compile  Scope = "compile"
	Provided Scope = "provided"
	Runtime  Scope = "runtime"
	Test     Scope = "test"
	System   Scope = "system"
	Build    Scope = "build"
)

// All lists every declarable scope in a stable order.
var All = []Scope{Compile, Provided, Runtime, Test, System, Build}

// Classpaths lists the scopes a classpath is typically assembled for.
var Classpaths = []Scope{Compile, Runtime, Test, Build}

// Parse converts a scope name into a Scope. An empty string yields None.
func Parse(s string) (Scope, error) {
	sc := Scope(s)
	if sc == None || sc.Valid() {
		return sc, nil
	}
	return None, fmt.Errorf("unknown scope %q", s)
}

// Valid reports whether s is one of the declarable scopes.
func (s Scope) Valid() bool {
	switch s {
	case Compile, Provided, Runtime, Test, System, Build:
		return true
	}
	return false
}

func (s Scope) String() string {
	return string(s)
}

// classpath holds, per requested scope, the declared scopes that appear on it.
var classpath = map[Scope]map[Scope]bool{
	Compile:  {Compile: true, Provided: true, System: true},
	Provided: {Compile: true, Provided: true, System: true},
	Runtime:  {Compile: true, Runtime: true, System: true},
	Test:     {Compile: true, Provided: true, Runtime: true, Test: true, System: true},
	System:   {System: true},
	Build:    {Build: true},
}

// IncludeOnClasspath reports whether a dependency declared at dependency
// appears on the classpath assembled for requested.
func IncludeOnClasspath(requested, dependency Scope) bool {
	if dependency == None {
		return false
	}
	return classpath[requested][dependency]
}

// TransitiveScope returns the scope a dependency declared at child inherits
// when it is reached through an edge whose own scope is parent. The boolean is
// false when the edge does not propagate at all.
//
// Only compile and runtime children ever propagate. A compile child keeps the
// parent's scope, except that a runtime parent stays runtime. A runtime child
// becomes runtime under compile, and otherwise takes the parent's scope.
func TransitiveScope(parent, child Scope) (Scope, bool) {
	if child != Compile && child != Runtime {
		return None, false
	}
	switch parent {
	case Compile:
		return child, true
	case Runtime:
		return Runtime, true
	case Provided, Test, Build:
		return parent, true
	}
	return None, false
}
