package main

import "github.com/root39293/platon-discord-bot/cmd"

func main() {
	cmd.Execute()
}
