package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/guardvision/guardvision/cmd/gv-monitor/app"
)

func main() {
	app.NewApp().Run()
}
