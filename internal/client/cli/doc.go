// Package cli is the interactive terminal front end. It wires the session
// store, the key store and the services together and runs a small REPL over
// them. Every value the user types is encrypted before it leaves the
// process; every value printed was decrypted moments before.
package cli
