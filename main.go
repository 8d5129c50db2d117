package main

import "wabot/cmd"

func main() {
	cmd.Execute()
}
