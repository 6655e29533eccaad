package main

import "animevote/internal/cli"

func main() {
	cli.Execute()
}
