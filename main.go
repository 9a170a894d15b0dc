package main

import "github.com/ryanpkennedy/df-healthbench/cmd"

func main() {
	cmd.Execute()
}
