package main

import (
	"github.com/phonlab/artimel"
)

func main() {
	artimel.NewDriver().Main()
}
