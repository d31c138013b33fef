package main

import "calbridge/cmd"

func main() {
	cmd.Execute()
}
