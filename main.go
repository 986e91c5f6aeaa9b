package main

import "bookmybox-cli/cmd"

func main() {
	cmd.Execute()
}
