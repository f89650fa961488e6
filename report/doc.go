// Package report records per-pattern outcomes in a closed error taxonomy and
// renders them as text or JSON.
package report
