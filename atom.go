package css

import (
	"sync"

	"golang.org/x/net/html/atom"
)

// Atom is an interned name. Two Atoms are equal exactly when the names are
// equal, so Atoms are cheap map keys.
//
// Names known to the HTML parser share the values of golang.org/x/net/html/atom,
// so an element's DataAtom converts directly. Other names are interned in a
// process-wide table and have the high bit set.
type Atom uint32

const dynamicAtom Atom = 1 << 31

var atoms = struct {
	sync.RWMutex
	ids   map[string]Atom
	names []string
}{ids: map[string]Atom{}}

// Intern returns the Atom for s. The empty string interns to 0.
func Intern(s string) Atom {
	if s == "" {
		return 0
	}
	if a := atom.Lookup([]byte(s)); a != 0 {
		return Atom(a)
	}
	atoms.RLock()
	a, ok := atoms.ids[s]
	atoms.RUnlock()
	if ok {
		return a
	}

	atoms.Lock()
	defer atoms.Unlock()
	if a, ok := atoms.ids[s]; ok {
		return a
	}
	a = dynamicAtom | Atom(len(atoms.names))
	atoms.names = append(atoms.names, s)
	atoms.ids[s] = a
	return a
}

// LookupAtom returns the Atom for s if it has been interned, without
// interning it.
func LookupAtom(s string) (Atom, bool) {
	if s == "" {
		return 0, false
	}
	if a := atom.Lookup([]byte(s)); a != 0 {
		return Atom(a), true
	}
	atoms.RLock()
	defer atoms.RUnlock()
	a, ok := atoms.ids[s]
	return a, ok
}

func (a Atom) String() string {
	if a == 0 {
		return ""
	}
	if a&dynamicAtom == 0 {
		return atom.Atom(a).String()
	}
	atoms.RLock()
	defer atoms.RUnlock()
	return atoms.names[a&^dynamicAtom]
}
