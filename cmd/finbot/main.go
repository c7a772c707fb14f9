// Command finbot is a terminal front end for the finance assistant.
//
// Configuration comes from FINBOT_ environment variables, optionally read
// from a .env file (see --env).
package main

func main() {
	Execute()
}
