package main

import "github.com/PaperStrike/wrightplay/cmd"

func main() {
	cmd.Execute()
}
