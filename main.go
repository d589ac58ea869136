package main

import "github.com/Builder-Lawyers/stack-deployer/cmd"

func main() {
	cmd.Init()
}
