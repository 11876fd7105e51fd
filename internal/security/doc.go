// Package security provides input validation for operations the model can
// trigger. The path validator confines file reads to an allowed set of
// directory roots and re-checks symlink targets.
package security
