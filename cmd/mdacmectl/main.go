// Command mdacmectl manages ACME-issued certificates for a set of
// managed domains.
package main

import "github.com/mdacme/mdacme/internal/cmd"

func main() {
	cmd.Execute()
}
