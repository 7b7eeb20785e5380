package main

import "github.com/Ruscigno/marketsum/cmd"

func main() {
	cmd.Execute()
}
