package main

import "github.com/motorlot/apiserver/cmd"

func main() {
	cmd.Execute()
}
