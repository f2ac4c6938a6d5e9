// Package policygate resolves runtime policy for state-layer queries:
// whether raw media may be shown, whether text may be exported, and
// which apps a query is allowed to touch.
package policygate
