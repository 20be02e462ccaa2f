package catalogue

// The shapes below mirror the subset of the DiamondFire action dump that
// the adapter reads. Unknown fields are ignored.

// Dump is a decoded action dump.
type Dump struct {
	Codeblocks []CodeblockEntry `json:"codeblocks"`
	Actions    []ActionEntry    `json:"actions"`
	GameValues []GameValueEntry `json:"gameValues"`
}

// CodeblockEntry names one codeblock, e.g. {"PLAYER ACTION", "player_action"}.
type CodeblockEntry struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// ActionEntry is one action of a codeblock.
type ActionEntry struct {
	Name          string     `json:"name"`
	CodeblockName string     `json:"codeblockName"`
	Tags          []TagEntry `json:"tags"`
	Icon          Icon       `json:"icon"`
}

// TagEntry is one tag of an action.
type TagEntry struct {
	Name          string        `json:"name"`
	Options       []OptionEntry `json:"options"`
	DefaultOption string        `json:"defaultOption"`
	Slot          int           `json:"slot"`
}

// OptionEntry is one option of a tag.
type OptionEntry struct {
	Name string `json:"name"`
}

// Icon holds the descriptive part of an entry.
type Icon struct {
	Name        string          `json:"name"`
	Description []string        `json:"description"`
	Arguments   []ArgumentEntry `json:"arguments"`
	ReturnType  string          `json:"returnType"`
}

// ArgumentEntry is a typed argument, or an "OR" separator line.
type ArgumentEntry struct {
	Type        string   `json:"type"`
	Plural      bool     `json:"plural"`
	Optional    bool     `json:"optional"`
	Description []string `json:"description"`
	Text        string   `json:"text"`
}

// GameValueEntry is one readable game value.
type GameValueEntry struct {
	Category string `json:"category"`
	Icon     Icon   `json:"icon"`
}
