package main

import "github.com/CMIP-Data-Request/CMIP7-DReq-Software/cmd"

func main() {
	cmd.Execute()
}
