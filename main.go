package main

import "github.com/imgos/swup/cmd"

func main() {
	cmd.Execute()
}
