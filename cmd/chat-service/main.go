package main

import (
	"os"

	"github.com/chatforge/chatforge/chatservice"
)

func main() {
	if err := chatservice.Run(); err != nil {
		os.Exit(1)
	}
}
