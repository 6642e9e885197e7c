package workflow

// State is the navigator's position in the target application.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingLogin
	StateCatalogReady
	StateSearching
	StateSelecting
	StateEditorOpen
	StateFieldsUpdated
	StateSaved
)

var stateNames = map[State]string{
	StateUnauthenticated: "unauthenticated",
	StateAwaitingLogin:   "awaiting_manual_login",
	StateCatalogReady:    "catalog_ready",
	StateSearching:       "searching",
	StateSelecting:       "selecting",
	StateEditorOpen:      "editor_open",
	StateFieldsUpdated:   "fields_updated",
	StateSaved:           "saved",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Authenticated reports whether the state is past the login gate.
func (s State) Authenticated() bool {
	return s >= StateCatalogReady
}
