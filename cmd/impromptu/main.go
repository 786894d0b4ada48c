package main

import (
	"github.com/hupe1980/impromptu/internal/cli"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
