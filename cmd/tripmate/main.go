package main

import "github.com/tripmate/authkit/cmd/tripmate/cmd"

func main() {
	cmd.Execute()
}
