package physics

import (
	"fmt"
	"sort"

	"github.com/san-kum/zoosearch/internal/dynamo"
)

var models = map[string]func() dynamo.System{
	"lorenz":    func() dynamo.System { return NewLorenz() },
	"rossler":   func() dynamo.System { return NewRossler() },
	"rucklidge": func() dynamo.System { return NewRucklidge() },
}

func ByName(name string) (dynamo.System, error) {
	fn, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
