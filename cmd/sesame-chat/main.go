// Package main provides the Sesame voice chat CLI.
//
// Usage:
//
//	sesame-chat [flags] <command> [args]
//
// Commands:
//
//	chat   - Interactive voice conversation with a Sesame character
//	token  - Manage the cached authentication token
//	config - Manage CLI configuration
//
// Configuration:
//
//	The CLI stores configuration in ~/.sesame/config.yaml and the
//	authentication token in ~/.sesame/token.json.
package main

import (
	"fmt"
	"os"

	"github.com/ijub/sesame-go/cmd/sesame-chat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
