// Package master speaks to the game's master directory: one GET returning
// every hoster and the server instances each one reports.
package master
