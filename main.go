package main

import "github.com/nextlevelbuilder/clawman/cmd"

func main() {
	cmd.Execute()
}
