// Command roastery serves the coffee roaster directory and manages its data.
package main

import "github.com/marshallshelly/roastery/cmd/roastery/commands"

func main() {
	commands.Execute()
}
