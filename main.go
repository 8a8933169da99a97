package main

import "github.com/timoverbrugghe/subgen-go/cmd"

func main() {
	cmd.Execute()
}
