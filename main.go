/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/icard-hq/apiserver/cmd"

func main() {
	cmd.Execute()
}
