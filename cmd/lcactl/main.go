// Package main provides lcactl, the admin CLI for the LCA wage database: schema
// setup, CSV loads, view refreshes and cache warming.
//
// Usage:
//
//	lcactl schema
//	lcactl load [--force] [--strategy from|avg|max] [--batch-size N] FILE...
//	lcactl refresh
//	lcactl warm
//	lcactl manifest
//	lcactl annualise RATE UNIT
package main

func main() {
	Execute()
}
