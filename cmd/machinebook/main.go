package main

import "github.com/example/machine-booker/cmd"

func main() {
	cmd.Execute()
}
