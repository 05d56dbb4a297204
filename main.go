package main

import "github.com/bryan-buckman/rinton/internal/cli"

func main() {
	cli.Execute()
}
