// Package expression provides compilation and evaluation of path-string
// expressions bound to field definitions. Expressions are evaluated against
// a {field, model, formState} context using expr-lang, with compiled
// programs cached per evaluator.
package expression
