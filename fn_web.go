package formula

import (
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// ENCODEURL percent-encodes text for use in a URL query; spaces become %20.
func (bf *BuiltInFunctions) ENCODEURL(c *call, args []Arg) CellValue {
	r := c.read(args)
	s := r.text(0)
	if r.failed {
		return r.err
	}
	return StringValue(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"))
}

// WEBSERVICE fetches a URL through the host. Every failure, including
// the transport's, is #VALUE!.
func (bf *BuiltInFunctions) WEBSERVICE(c *call, args []Arg) CellValue {
	r := c.read(args)
	raw := r.text(0)
	if r.failed {
		return r.err
	}
	if raw == "" {
		return ErrorValue(ErrorCodeValue, "WEBSERVICE url must not be empty")
	}
	if len(raw) > bf.maxURLLength {
		return errorf(ErrorCodeValue, "WEBSERVICE url exceeds %d characters", bf.maxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrorValue(ErrorCodeValue, "WEBSERVICE url is not valid")
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return ErrorValue(ErrorCodeValue, "WEBSERVICE only supports http and https")
	}

	body, err := c.ec.HTTPFetch(c.ctx, raw)
	if err != nil {
		c.logger.Warnf(c.ctx, "WEBSERVICE fetch %s failed: %v", raw, err)
		return ErrorValue(ErrorCodeValue, "WEBSERVICE request failed")
	}
	if len(body) > bf.maxResponseBytes {
		return errorf(ErrorCodeValue, "WEBSERVICE response exceeds %d bytes", bf.maxResponseBytes)
	}
	return StringValue(body)
}

// FILTERXML(xml, xpath) returns the first match of a small XPath subset:
// absolute child paths (/a/b), descendant search (//b), and a trailing
// attribute (@name) or text() step.
func (bf *BuiltInFunctions) FILTERXML(c *call, args []Arg) CellValue {
	r := c.read(args)
	doc := r.text(0)
	path := r.text(1)
	if r.failed {
		return r.err
	}
	q, ok := parseXPath(path)
	if !ok {
		return ErrorValue(ErrorCodeValue, "FILTERXML xpath is not supported: "+path)
	}
	root, err := parseXMLTree(doc)
	if err != nil {
		return ErrorValue(ErrorCodeValue, "FILTERXML xml is not well formed")
	}
	text, found := q.first(root)
	if !found {
		return ErrorValue(ErrorCodeValue, "FILTERXML: no match for "+path)
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
		return numberValue(n)
	}
	return StringValue(text)
}

type xmlNode struct {
	name     string
	attrs    []xml.Attr
	text     strings.Builder
	children []*xmlNode
}

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// parseXMLTree returns a synthetic document node holding the root element.
func parseXMLTree(doc string) (*xmlNode, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	top := &xmlNode{}
	stack := []*xmlNode{top}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local, attrs: t.Attr}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			stack[len(stack)-1].text.Write(t)
		}
	}
	if len(top.children) == 0 {
		return nil, errors.New("no root element")
	}
	return top, nil
}

type xpathQuery struct {
	descendant bool     // the first step searches the whole tree
	steps      []string // element names
	attr       string   // trailing @attr, if any
}

func parseXPath(path string) (xpathQuery, bool) {
	var q xpathQuery
	switch {
	case strings.HasPrefix(path, "//"):
		q.descendant = true
		path = path[2:]
	case strings.HasPrefix(path, "/"):
		path = path[1:]
	default:
		return q, false
	}
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	switch {
	case last == "text()":
		parts = parts[:len(parts)-1]
	case strings.HasPrefix(last, "@"):
		q.attr = last[1:]
		parts = parts[:len(parts)-1]
		if q.attr == "" {
			return q, false
		}
	}
	if len(parts) == 0 {
		return q, false
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "[]()@*") {
			return q, false
		}
	}
	q.steps = parts
	return q, true
}

// first walks the tree in document order and returns the value of the
// first node the query selects.
func (q xpathQuery) first(doc *xmlNode) (string, bool) {
	var starts []*xmlNode
	if q.descendant {
		var walk func(n *xmlNode)
		walk = func(n *xmlNode) {
			for _, ch := range n.children {
				if ch.name == q.steps[0] {
					starts = append(starts, ch)
				}
				walk(ch)
			}
		}
		walk(doc)
	} else {
		for _, ch := range doc.children {
			if ch.name == q.steps[0] {
				starts = append(starts, ch)
			}
		}
	}
	for _, s := range starts {
		if v, ok := q.match(s, q.steps[1:]); ok {
			return v, true
		}
	}
	return "", false
}

func (q xpathQuery) match(n *xmlNode, rest []string) (string, bool) {
	if len(rest) == 0 {
		if q.attr != "" {
			return n.attr(q.attr)
		}
		return n.text.String(), true
	}
	for _, ch := range n.children {
		if ch.name != rest[0] {
			continue
		}
		if v, ok := q.match(ch, rest[1:]); ok {
			return v, true
		}
	}
	return "", false
}
