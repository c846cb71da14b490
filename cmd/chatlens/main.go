package main

import "github.com/chatlens/chatlens/internal/config"

func main() {
	config.LoadEnv()
	Execute()
}
