// Package shared holds helpers used by more than one package that do not
// belong to a domain layer. At the moment that is only testutil.
package shared
