// Package main provides the ggmlio CLI for inspecting and converting model
// files.
package main

func main() {
	execute()
}
