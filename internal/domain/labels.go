package domain

// Label is a classification output. The zero value is Unknown.
type Label struct {
	index int
	name  string
}

// Unknown is returned for model indices outside the label table.
var Unknown = Label{index: -1, name: "Unknown"}

func (l Label) String() string {
	if l.name == "" {
		return Unknown.name
	}
	return l.name
}

// Index is the model output index, or -1 for Unknown.
func (l Label) Index() int {
	if l.name == "" {
		return Unknown.index
	}
	return l.index
}

func (l Label) IsUnknown() bool { return l.Index() < 0 }

// LabelSet is the fixed, closed enumeration the model was trained to produce.
type LabelSet struct {
	labels []Label
}

func NewLabelSet(names []string) LabelSet {
	labels := make([]Label, 0, len(names))
	for i, name := range names {
		labels = append(labels, Label{index: i, name: name})
	}
	return LabelSet{labels: labels}
}

func (s LabelSet) Len() int { return len(s.labels) }

// Lookup maps a model output index to its label.
func (s LabelSet) Lookup(index int) Label {
	if index < 0 || index >= len(s.labels) {
		return Unknown
	}
	return s.labels[index]
}
