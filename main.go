package main

import "github.com/nimbledb/tnt-go/cmd/tntbench"

func main() {
	tntbench.Execute()
}
