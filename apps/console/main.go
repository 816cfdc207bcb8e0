package main

import (
	"github.com/probabilityIA/invoicing-console/internal/cli"
)

func main() {
	cli.Execute()
}
