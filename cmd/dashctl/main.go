package main

import "github.com/jrsteele09/dashboard-session/cmd/dashctl/cmd"

func main() {
	cmd.Execute()
}
