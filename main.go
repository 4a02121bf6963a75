package main

import "github.com/chaperonebot/chaperone/cmd"

func main() {
	cmd.Execute()
}
