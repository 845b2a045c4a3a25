// Command csim replays memory traces on a simulated set-associative cache
// and reports hits, misses and evictions.
package main

import "github.com/sarchlab/csim/csim/cmd"

func main() {
	cmd.Execute()
}
