package contextset

import (
	"fmt"
	"strings"
)

// UnknownSetError indicates a requested or included set name that does
// not exist in the configuration.
type UnknownSetError struct {
	Name       string
	Suggestion string
}

func (e *UnknownSetError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("context set '%s' not found (did you mean '%s'?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("context set '%s' not found", e.Name)
}

// CyclicIncludeError indicates a cycle in the include graph reachable
// from a requested set. Cycle holds the set names along the cycle, ending
// with the repeated name, e.g. [wrapper, base, wrapper].
type CyclicIncludeError struct {
	Cycle []string
}

func (e *CyclicIncludeError) Error() string {
	return fmt.Sprintf("cyclic include detected: %s", strings.Join(e.Cycle, " -> "))
}
