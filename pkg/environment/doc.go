// Package environment carries the deployment stage through request contexts
// so handlers and log records can tell production from the other stages.
package environment
