package main

import "github.com/KaramelBytes/filialcluster/cmd"

func main() {
	cmd.Execute()
}
