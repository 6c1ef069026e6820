// Package interop decides whether a client build may talk to this server
// build, based on a version-window list shipped alongside the binary.
package interop

import (
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Interoperability is one row of the compatibility list: clients at least as
// new as Client work with servers at least as new as Server.
type Interoperability struct {
	Server string `yaml:"server"`
	Client string `yaml:"client"`
}

// Window is the half-open client version range a server accepts. A nil From
// accepts nothing; a nil To has no upper bound.
type Window struct {
	From *string
	To   *string
}

// Usable reports whether clientVersion falls inside the window.
func (w Window) Usable(clientVersion string) bool {
	if w.From == nil {
		return false
	}
	if CompareVersion(*w.From, clientVersion) > 0 {
		return false
	}
	return w.To == nil || CompareVersion(*w.To, clientVersion) > 0
}

// CompareVersion orders two version strings of the shape "<name> X.Y.Z"
// segment-wise, returning <0, 0 or >0. A missing segment counts as zero.
func CompareVersion(a, b string) int {
	as := segments(a)
	bs := segments(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

func segments(v string) []int {
	fields := strings.Fields(v)
	if len(fields) > 0 {
		v = fields[len(fields)-1]
	}
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimFunc(p, func(r rune) bool { return r < '0' || r > '9' }))
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}

// Load reads the interoperability list and computes the client window for
// the given server version. The list is ordered newest first.
func Load(path, serverVersion string) (Window, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Window{}, err
	}
	var list []Interoperability
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return Window{}, err
	}
	return WindowFor(list, serverVersion), nil
}

// WindowFor finds the client range matching serverVersion in a newest-first
// interoperability list.
func WindowFor(list []Interoperability, serverVersion string) Window {
	var w Window
	if len(list) == 0 {
		return w
	}
	if CompareVersion(list[0].Server, serverVersion) <= 0 {
		from := list[0].Client
		w.From = &from
		return w
	}
	for i := 1; i < len(list); i++ {
		if CompareVersion(list[i-1].Server, serverVersion) > 0 &&
			CompareVersion(list[i].Server, serverVersion) <= 0 {
			from := list[i].Client
			to := list[i-1].Client
			w.From = &from
			w.To = &to
		}
	}
	return w
}
