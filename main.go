package main

import "anchor-studio/cmd"

func main() {
	cmd.Execute()
}
