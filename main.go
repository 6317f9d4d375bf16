package main

import "github.com/mikesmitty/pump-cap/cmd"

func main() {
	cmd.Execute()
}
