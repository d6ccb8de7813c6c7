// Command sercha-rag answers questions against the notes linked to a
// document in a markdown vault.
package main

import "github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
