package main

import "github.com/pgnest-project/pgnest/internal/cli"

func main() {
	cli.Execute()
}
