package main

import "github.com/forPelevin/vidbrief/internal/cli"

func main() {
	cli.Main()
}
