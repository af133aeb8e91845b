package main

import "github.com/Tiliavir/hamster-panel/cmd"

func main() {
	cmd.Execute()
}
