// Command injurystore manages an athlete's injury list kept in a key-value store.
package main

import "github.com/nimburion/injurystore/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "injurystore",
		Description: "Store, update and serve injury records kept as one JSON list in a key-value store",
	}))
}
