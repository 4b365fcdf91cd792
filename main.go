package main

import "bsod-cli/cmd"

func main() {
	cmd.Execute()
}
