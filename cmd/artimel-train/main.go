package main

import (
	"github.com/phonlab/artimel/forward"
)

func main() {
	forward.NewTrainer(nil, nil, nil, nil).Main()
}
