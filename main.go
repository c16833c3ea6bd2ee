package main

import "github.com/frahmantamala/thesis-repository/cmd"

func main() {
	cmd.Execute()
}
