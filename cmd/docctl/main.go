package main

import "docchat/internal/transport/cli"

func main() {
	cli.Execute()
}
