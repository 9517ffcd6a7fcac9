package main

import "go.pilab.hu/deviceauth/cmd/devicectl/cmd"

func main() {
	cmd.Execute()
}
