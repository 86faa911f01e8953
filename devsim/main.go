// Command devsim runs discrete event scenarios described in YAML files.
package main

import "github.com/sarchlab/devs/devsim/cmd"

func main() {
	cmd.Execute()
}
