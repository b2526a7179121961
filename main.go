package main

import "github.com/soundlabml/genremic/cmd"

func main() {
	cmd.Execute()
}
