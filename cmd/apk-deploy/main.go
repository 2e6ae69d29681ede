package main

import "github.com/oshokin/apk-deploy/cmd/apk-deploy/cmd"

func main() {
	cmd.Execute()
}
