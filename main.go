package main

import "github.com/mselser95/basket-slippage/cmd"

func main() {
	cmd.Execute()
}
