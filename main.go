package main

import "github.com/nextlevelbuilder/ircclaw/cmd"

func main() {
	cmd.Execute()
}
