// Package template renders "{{ expr }}" strings and evaluates boolean
// conditions for page configuration.
//
// Expressions use HCL native syntax (hashicorp/hcl/v2 hclsyntax) evaluated
// with go-cty. For familiarity a few pipe-style conveniences are accepted and
// rewritten before parsing:
//
//	value.size | filesizeformat          ->  filesizeformat(value.size)
//	row.name | default(value="n/a")      ->  default(row.name, "n/a")
//	row.a == 'x' and not row.b           ->  row.a == "x" && !row.b
//
// Variable references are resolved lazily through a Scope: each traversal in
// an expression (row.spec.node, pods[0].name) is walked against the value
// tree, and anything that does not resolve evaluates to null, which renders
// as an empty string.
package template
