package main

import "coaching-billing/cmd"

func main() {
	cmd.Execute()
}
