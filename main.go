package main

import "github.com/contentops/packlint/cmd"

func main() {
	cmd.Execute()
}
