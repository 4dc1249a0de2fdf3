package main

import (
	"github.com/flanksource/toolchains/cmd"
)

func main() {
	cmd.Execute()
}
