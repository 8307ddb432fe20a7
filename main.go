package main

import "backup-verifier/cmd"

func main() {
	cmd.Execute()
}
