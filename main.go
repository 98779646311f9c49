package main

import "github.com/jmehdipour/reminder/cmd"

func main() {
	cmd.Execute()
}
