package schema

// DocComment is a parsed documentation comment associated with a node.
type DocComment struct {
	// Description is the free text before the first tag.
	Description string     `json:"description,omitempty"`
	Params      []DocParam `json:"params,omitempty"`
	Returns     string     `json:"returns,omitempty"`
	Throws      []string   `json:"throws,omitempty"`
	Example     string     `json:"example,omitempty"`
}

// DocParam is one @param entry with bracket/default/type decoration stripped.
type DocParam struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Empty reports whether the comment carries no content at all.
func (d *DocComment) Empty() bool {
	return d == nil ||
		(d.Description == "" && len(d.Params) == 0 && d.Returns == "" &&
			len(d.Throws) == 0 && d.Example == "")
}
