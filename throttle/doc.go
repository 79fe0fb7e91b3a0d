// Package throttle binds rate-limit policies to named operations.
//
// A [Registry] is built once from a table mapping operation ids (for example
// "login" or "password_reset.request") to a [Policy]. The gating layer looks
// up the policy for the operation it is about to run and keys the rate check
// with [Key]. Policies are immutable after registration.
package throttle
