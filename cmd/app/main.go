package main

import "libbot/internal/cli"

func main() {
	cli.Execute()
}
