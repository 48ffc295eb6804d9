package main

import "chatat/cmd"

func main() {
	cmd.Execute()
}
