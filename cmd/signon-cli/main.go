package main

import "github.com/acmelabs/signon/cmd/signon-cli/cmd"

func main() {
	cmd.Execute()
}
