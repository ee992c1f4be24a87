// Package command hosts the interactive surface: the shared command
// context, the line dispatcher, and the cache flush scheduler.
package command
