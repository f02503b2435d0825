package main

import "github.com/funpik/adminconsole/cmd/adminconsole/cmd"

func main() {
	cmd.Execute()
}
