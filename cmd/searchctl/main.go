package main

import "github.com/Adithya-Monish-Kumar-K/plotsearch/internal/cli"

func main() {
	cli.Execute()
}
