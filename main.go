package main

import "github.com/WKowalczykDev/EntranceControl/cmd"

func main() {
	cmd.Execute()
}
