package main

import "github.com/simonyos/whisper/cmd"

func main() {
	cmd.Execute()
}
