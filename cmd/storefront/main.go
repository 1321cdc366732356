package main

import "github.com/bookstore/storefront/cmd/storefront/commands"

func main() {
	commands.Execute()
}
