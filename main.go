package main

import "github.com/meysamhadeli/codegrep/cmd"

func main() {
	cmd.Execute()
}
