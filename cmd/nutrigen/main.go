package main

import "github.com/nutrigen/nutrigen/internal/cli"

func main() {
	cli.Execute()
}
