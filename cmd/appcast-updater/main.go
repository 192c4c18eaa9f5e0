package main

import "github.com/oshokin/appcast-updater/cmd/appcast-updater/cmd"

func main() {
	cmd.Execute()
}
