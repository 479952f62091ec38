package main

import (
	"github.com/0xPolygon/router-mesh/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
