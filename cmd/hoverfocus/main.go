package main

import "github.com/hoverfocus/hoverfocus/cmd/hoverfocus/commands"

func main() {
	commands.Execute()
}
