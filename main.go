package main

import (
	"github.com/pynara/geogrid/cmd"
	"github.com/pynara/geogrid/internal/config"
)

func main() {
	config.LoadConfig()
	cmd.Execute()
}
