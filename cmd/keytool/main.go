package main

import (
	"os"

	"github.com/dmitrijs2005/gideon/internal/keytool"
)

func main() {
	app := keytool.NewApp(os.Stdout, os.Stderr, os.Stdin, os.Getenv)
	os.Exit(app.Run(os.Args[1:]))
}
