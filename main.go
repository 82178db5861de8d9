package main

import "github.com/kiesman99/rgbify/cmd"

func main() {
	cmd.Execute()
}
