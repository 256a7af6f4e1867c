package main

import (
	"github.com/guardvision/guardvision/cmd/gv-seed/app"
)

func main() {
	app.NewApp().Run()
}
