package check

import (
	"github.com/pkg/errors"

	"github.com/born-ml/handler/internal/tensor"
)

// WantSuffix marks the post-call value of an output in Fixtures.
const WantSuffix = ".want"

// Fixtures runs every case on h and collects host copies of its arguments.
// Each argument is keyed "<case>/<arg>" with the value passed to the call;
// outputs also get "<case>/<arg>.want" with the value h left in them.
func Fixtures(h tensor.Handler, cases []Case) (map[string]*tensor.RawTensor, error) {
	fixtures := make(map[string]*tensor.RawTensor)
	for i := range cases {
		c := &cases[i]
		got, err := execute(h, c)
		if err != nil {
			return nil, errors.Wrapf(err, "%s on %s", c.Name, h.Name())
		}
		for j, a := range c.Args {
			key := c.Name + "/" + a.Name
			fixtures[key] = a.Host
			if a.Role == Output {
				fixtures[key+WantSuffix] = got[j]
			}
		}
	}
	return fixtures, nil
}
