package css

// PseudoType identifies a pseudo-class or pseudo-element.
type PseudoType uint8

const (
	PseudoUnknown PseudoType = iota

	// Pseudo-classes.
	PseudoActive
	PseudoAnyLink
	PseudoChecked
	PseudoDefault
	PseudoDefined
	PseudoDir
	PseudoDisabled
	PseudoEmpty
	PseudoEnabled
	PseudoFirstChild
	PseudoFirstOfType
	PseudoFocus
	PseudoFocusVisible
	PseudoFocusWithin
	PseudoHas
	PseudoHost
	PseudoHostContext
	PseudoHover
	PseudoIndeterminate
	PseudoInvalid
	PseudoIs
	PseudoLang
	PseudoLastChild
	PseudoLastOfType
	PseudoLink
	PseudoNot
	PseudoNthChild
	PseudoNthLastChild
	PseudoNthLastOfType
	PseudoNthOfType
	PseudoOnlyChild
	PseudoOnlyOfType
	PseudoOptional
	PseudoPlaceholderShown
	PseudoReadOnly
	PseudoReadWrite
	PseudoRequired
	PseudoRoot
	PseudoScope
	PseudoTarget
	PseudoValid
	PseudoVisited
	PseudoWhere

	// PseudoParent is the nesting selector '&'.
	PseudoParent
	// PseudoRelativeAnchor terminates a relative selector inside :has().
	PseudoRelativeAnchor

	// Pseudo-elements.
	PseudoAfter
	PseudoBackdrop
	PseudoBefore
	PseudoFirstLetter
	PseudoFirstLine
	PseudoMarker
	PseudoPart
	PseudoPlaceholder
	PseudoSelection
	PseudoSlotted
	// PseudoWebKitCustomElement is a UA shadow pseudo-element such as
	// ::-webkit-scrollbar.
	PseudoWebKitCustomElement
)

type pseudoInfo struct {
	name     string
	function bool
	element  bool
}

var pseudoInfos = map[PseudoType]pseudoInfo{
	PseudoActive:           {name: "active"},
	PseudoAnyLink:          {name: "any-link"},
	PseudoChecked:          {name: "checked"},
	PseudoDefault:          {name: "default"},
	PseudoDefined:          {name: "defined"},
	PseudoDir:              {name: "dir", function: true},
	PseudoDisabled:         {name: "disabled"},
	PseudoEmpty:            {name: "empty"},
	PseudoEnabled:          {name: "enabled"},
	PseudoFirstChild:       {name: "first-child"},
	PseudoFirstOfType:      {name: "first-of-type"},
	PseudoFocus:            {name: "focus"},
	PseudoFocusVisible:     {name: "focus-visible"},
	PseudoFocusWithin:      {name: "focus-within"},
	PseudoHas:              {name: "has", function: true},
	PseudoHost:             {name: "host"},
	PseudoHostContext:      {name: "host-context", function: true},
	PseudoHover:            {name: "hover"},
	PseudoIndeterminate:    {name: "indeterminate"},
	PseudoInvalid:          {name: "invalid"},
	PseudoIs:               {name: "is", function: true},
	PseudoLang:             {name: "lang", function: true},
	PseudoLastChild:        {name: "last-child"},
	PseudoLastOfType:       {name: "last-of-type"},
	PseudoLink:             {name: "link"},
	PseudoNot:              {name: "not", function: true},
	PseudoNthChild:         {name: "nth-child", function: true},
	PseudoNthLastChild:     {name: "nth-last-child", function: true},
	PseudoNthLastOfType:    {name: "nth-last-of-type", function: true},
	PseudoNthOfType:        {name: "nth-of-type", function: true},
	PseudoOnlyChild:        {name: "only-child"},
	PseudoOnlyOfType:       {name: "only-of-type"},
	PseudoOptional:         {name: "optional"},
	PseudoPlaceholderShown: {name: "placeholder-shown"},
	PseudoReadOnly:         {name: "read-only"},
	PseudoReadWrite:        {name: "read-write"},
	PseudoRequired:         {name: "required"},
	PseudoRoot:             {name: "root"},
	PseudoScope:            {name: "scope"},
	PseudoTarget:           {name: "target"},
	PseudoValid:            {name: "valid"},
	PseudoVisited:          {name: "visited"},
	PseudoWhere:            {name: "where", function: true},

	PseudoParent:         {name: "&"},
	PseudoRelativeAnchor: {name: "-internal-relative-anchor"},

	PseudoAfter:       {name: "after", element: true},
	PseudoBackdrop:    {name: "backdrop", element: true},
	PseudoBefore:      {name: "before", element: true},
	PseudoFirstLetter: {name: "first-letter", element: true},
	PseudoFirstLine:   {name: "first-line", element: true},
	PseudoMarker:      {name: "marker", element: true},
	PseudoPart:        {name: "part", function: true, element: true},
	PseudoPlaceholder: {name: "placeholder", element: true},
	PseudoSelection:   {name: "selection", element: true},
	PseudoSlotted:     {name: "slotted", function: true, element: true},
}

// pseudoKey indexes the lookup tables by lowercased name, function-ness and
// element-ness.
type pseudoKey struct {
	name     string
	function bool
	element  bool
}

var pseudoByName = func() map[pseudoKey]PseudoType {
	m := make(map[pseudoKey]PseudoType, len(pseudoInfos))
	for typ, info := range pseudoInfos {
		if typ == PseudoParent || typ == PseudoRelativeAnchor {
			continue
		}
		m[pseudoKey{info.name, info.function, info.element}] = typ
	}
	return m
}()

// lookupPseudo returns the type of a pseudo-class or pseudo-element by name.
// Names are ASCII case-insensitive.
func lookupPseudo(name string, function, element bool) PseudoType {
	name = asciiLower(name)
	if element && !function && len(name) > len("-webkit-") && name[:len("-webkit-")] == "-webkit-" {
		return PseudoWebKitCustomElement
	}
	if function && !element && name == "host" {
		return PseudoHost
	}
	return pseudoByName[pseudoKey{name, function, element}]
}

// isLegacyPseudoElement reports pseudo-elements that may be written with a
// single colon.
func isLegacyPseudoElement(name string) bool {
	switch asciiLower(name) {
	case "before", "after", "first-line", "first-letter":
		return true
	}
	return false
}

func (p PseudoType) String() string {
	return pseudoInfos[p].name
}

// IsElement reports whether p is a pseudo-element.
func (p PseudoType) IsElement() bool {
	return pseudoInfos[p].element || p == PseudoWebKitCustomElement
}

// takesSelectorList reports pseudos whose argument is a selector list.
func (p PseudoType) takesSelectorList() bool {
	switch p {
	case PseudoIs, PseudoWhere, PseudoNot, PseudoHas, PseudoHost, PseudoHostContext, PseudoSlotted:
		return true
	}
	return false
}

// IsNth reports the :nth-*() pseudo-classes.
func (p PseudoType) IsNth() bool {
	switch p {
	case PseudoNthChild, PseudoNthLastChild, PseudoNthOfType, PseudoNthLastOfType:
		return true
	}
	return false
}
