package loader

import (
	"encoding/xml"
)

// element is a generic XML element. Child order is document order.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
}

func parseTree(doc string, data []byte) (*element, error) {
	var root element
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Document: doc, Message: "malformed XML", Cause: err}
	}
	return &root, nil
}

func (e *element) tag() string {
	return e.XMLName.Local
}

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// require returns the named attribute or a MissingAttributeError.
func (e *element) require(doc, name string) (string, error) {
	v, ok := e.attr(name)
	if !ok {
		return "", &MissingAttributeError{Document: doc, Element: e.tag(), Attribute: name}
	}
	return v, nil
}

// iter returns e and all its descendants with the given tag, in pre-order.
func (e *element) iter(tag string) []*element {
	var out []*element
	var walk func(n *element)
	walk = func(n *element) {
		if n.tag() == tag {
			out = append(out, n)
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(e)
	return out
}
