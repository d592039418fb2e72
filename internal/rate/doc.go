// Package rate implements fixed-window Redis counters for ceremony and
// refresh throttling.
package rate
