package compiler

import "github.com/dlclark/regexp2"

// checkPattern compiles a filter or value-filter pattern in the
// backtracking dialect the engine evaluates, so lookaround and
// backreferences are accepted.
func checkPattern(pattern string) error {
	_, err := regexp2.Compile(pattern, regexp2.None)
	return err
}
