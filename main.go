package main

import "github.com/miilabs/auction-harvester/cmd"

func main() {
	cmd.Execute()
}
