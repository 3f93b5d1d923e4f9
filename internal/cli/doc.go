// Package cli defines the anvil command tree: the distribution build command
// and the test builder command, with the shared logging setup.
package cli
