package main

import "github.com/SoarinFerret/SiteWarden/cmd/siwctl/arg"

func main() {
	arg.Execute()
}
