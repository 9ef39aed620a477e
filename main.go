package main

import "github.com/sheepdog/clusterdrv/cmd"

func main() {
	cmd.Execute()
}
