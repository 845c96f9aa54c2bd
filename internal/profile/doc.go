// Package profile defines agent profiles: named personas with fixed role
// prompts that parametrize the shared dispatch pipeline.
package profile
