// Package main placed in testdata made "main" to avoid being imported by anyone. It lacks
// "func main() {…}" in order not to be built with
//
//	go build
//
// These are the plan command test cases, not a usable program.
package main
