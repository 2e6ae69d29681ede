// Package report prints human-readable summaries of a run and of the attached devices.
package report
