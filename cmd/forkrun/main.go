// Command forkrun spawns a worker over a fork channel, sends it commands and
// prints the events it reports.
package main

func main() {
	Execute()
}
