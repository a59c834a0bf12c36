package main

import "github.com/ngld/rackbuild/cmd"

func main() {
	cmd.Execute()
}
