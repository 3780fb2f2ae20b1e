// Package main is the entry point for the geoatlas binary: the ETL pipeline
// and the HTTP query API in one tool.
package main

import "os"

func main() {
	os.Exit(Execute())
}
