package appcast

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

const (
	itemTag        = "item"
	enclosureTag   = "enclosure"
	descriptionTag = "description"
	deltasTag      = "deltas"

	urlAttr       = "url"
	versionAttr   = "version"
	deltaFromAttr = "deltaFrom"
	signatureAttr = "dsaSignature"

	xmlnsPrefix = "xmlns"

	// indentSpaces is the indentation width of the serialized manifest.
	indentSpaces = 2

	declarationTarget = "xml"
	declaration       = `version="1.0" encoding="UTF-8" standalone="yes"`
)

var (
	// ErrMalformed is returned when the manifest is not a well-formed XML document.
	ErrMalformed = errors.New("malformed manifest")

	errNoRoot             = errors.New("document has no root element")
	errNamespaceMismatch  = errors.New("namespace prefix is bound to another URI")
	errMissingEnclosure   = errors.New("item has no enclosure")
	errMissingVersion     = errors.New("enclosure has no version")
	errMissingDeltaSource = errors.New("delta enclosure has no source version")
)

// Namespace identifies the XML namespace of update-specific attributes.
type Namespace struct {
	// Prefix is emitted literally in front of namespaced names, e.g. "sparkle".
	Prefix string
	// URI is the namespace bound to Prefix on the root element.
	URI string
}

// name returns the prefixed form of a local name.
func (n Namespace) name(local string) string {
	return n.Prefix + ":" + local
}

// Document is a parsed manifest.
type Document struct {
	// tree is the underlying XML document.
	tree *etree.Document
	// ns is the update namespace used to address attributes.
	ns Namespace
}

// Parse reads a manifest, keeping CDATA sections as CDATA.
// The update namespace is looked up by URI on the root element, so any prefix bound
// to it is used. If the URI is not declared, it is added under ns.Prefix.
func Parse(data []byte, ns Namespace) (*Document, error) {
	tree := etree.NewDocument()
	tree.ReadSettings.PreserveCData = true

	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, errNoRoot)
	}

	bound, err := bindNamespace(root, ns)
	if err != nil {
		return nil, err
	}

	return &Document{
		tree: tree,
		ns:   bound,
	}, nil
}

// Releases returns the release entries in document order.
func (d *Document) Releases() ([]*Release, error) {
	items := collectElements(d.tree.Root(), itemTag, nil)
	releases := make([]*Release, 0, len(items))

	for i, item := range items {
		element := childElement(item, "", enclosureTag)
		if element == nil {
			return nil, fmt.Errorf("item %d: %w", i+1, errMissingEnclosure)
		}

		release := &Release{
			enclosure: enclosure{element: element, ns: d.ns},
			item:      item,
		}

		if release.Version() == "" {
			return nil, fmt.Errorf("item %d: %w", i+1, errMissingVersion)
		}

		releases = append(releases, release)
	}

	return releases, nil
}

// Bytes serializes the document with indentation and a standalone declaration.
func (d *Document) Bytes() ([]byte, error) {
	d.setDeclaration()
	d.tree.Indent(indentSpaces)

	data, err := d.tree.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}

	return data, nil
}

// setDeclaration rewrites the XML declaration, adding one if it is missing.
func (d *Document) setDeclaration() {
	for _, token := range d.tree.Child {
		if instruction, ok := token.(*etree.ProcInst); ok && instruction.Target == declarationTarget {
			instruction.Inst = declaration
			return
		}
	}

	d.tree.InsertChildAt(0, etree.NewProcInst(declarationTarget, declaration))
}

// bindNamespace returns the namespace with the prefix the root element binds to its URI.
// When the URI is not declared, it is declared under the configured prefix.
func bindNamespace(root *etree.Element, ns Namespace) (Namespace, error) {
	for _, attribute := range root.Attr {
		if attribute.Space == xmlnsPrefix && attribute.Value == ns.URI {
			return Namespace{Prefix: attribute.Key, URI: ns.URI}, nil
		}
	}

	key := xmlnsPrefix + ":" + ns.Prefix

	if existing := root.SelectAttr(key); existing != nil {
		return Namespace{}, fmt.Errorf("%s=%q: %w", key, existing.Value, errNamespaceMismatch)
	}

	root.CreateAttr(key, ns.URI)

	return ns, nil
}

// childElements returns the direct children with the given prefix and local name.
func childElements(parent *etree.Element, space, tag string) []*etree.Element {
	var found []*etree.Element

	for _, child := range parent.ChildElements() {
		if child.Space == space && child.Tag == tag {
			found = append(found, child)
		}
	}

	return found
}

// childElement returns the first direct child with the given prefix and local name.
func childElement(parent *etree.Element, space, tag string) *etree.Element {
	if found := childElements(parent, space, tag); len(found) > 0 {
		return found[0]
	}

	return nil
}

// collectElements walks the tree depth-first and appends un-prefixed elements named tag.
func collectElements(element *etree.Element, tag string, found []*etree.Element) []*etree.Element {
	if element == nil {
		return found
	}

	if element.Space == "" && element.Tag == tag {
		found = append(found, element)
	}

	for _, child := range element.ChildElements() {
		found = collectElements(child, tag, found)
	}

	return found
}
