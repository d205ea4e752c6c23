package main

import "github.com/afridiag/fieldsync/internal/cli"

func main() {
	cli.Execute()
}
