package main

import "github.com/denysvitali/megacmd-runtime-go/cmd"

func main() {
	cmd.Execute()
}
