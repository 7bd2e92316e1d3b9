package main

import "anon-sync/cmd"

func main() {
	cmd.Execute()
}
