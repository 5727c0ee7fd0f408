package main

import "github.com/domteam/dom-session/cmd"

func main() {
	cmd.Execute()
}
