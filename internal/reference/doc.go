// Package reference resolves declarative step inputs into concrete values.
//
// Resolution is a pure function of the input tree, the step results recorded
// so far and, optionally, the workflow context:
//
//  1. nil inputs resolve to nil.
//  2. With a context, Semantic placeholders ({$semantic: previous|first|latest})
//     are rewritten into References before anything else happens.
//  3. A Reference {$ref: "step.a.0.b"} reads the output of a previous step and
//     walks the dot path through objects and arrays.
//  4. A Merge {$merge: [...]} resolves each member and shallow-merges the
//     resulting objects; later members win and nil members are skipped.
//  5. Objects and arrays are resolved element by element; other literals are
//     returned unchanged.
//
// A reference never silently yields an absent value: a missing or failed
// step, a missing key, an out of range index or a non-container intermediate
// value all produce an *Error naming the reference and the step.
package reference
