package main

import "github.com/seolens/siteaudit/cmd"

func main() {
	cmd.Execute()
}
