package appcast

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// enclosure holds the attribute accessors shared by releases and deltas.
type enclosure struct {
	element *etree.Element
	ns      Namespace
}

// Version returns the sparkle:version attribute.
func (e *enclosure) Version() string {
	return e.attr(e.ns.name(versionAttr))
}

// URL returns the download reference.
func (e *enclosure) URL() string {
	return e.attr(urlAttr)
}

// SetURL overwrites the download reference.
func (e *enclosure) SetURL(url string) {
	e.element.CreateAttr(urlAttr, url)
}

// Signature returns the stored signature or an empty string.
func (e *enclosure) Signature() string {
	return e.attr(e.ns.name(signatureAttr))
}

// SetSignature stores the signature attribute.
func (e *enclosure) SetSignature(signature string) {
	e.element.CreateAttr(e.ns.name(signatureAttr), signature)
}

// attr looks an attribute up by its exact prefix and local name.
func (e *enclosure) attr(key string) string {
	space, local := "", key
	if i := strings.IndexByte(key, ':'); i >= 0 {
		space, local = key[:i], key[i+1:]
	}

	for _, attribute := range e.element.Attr {
		if attribute.Space == space && attribute.Key == local {
			return attribute.Value
		}
	}

	return ""
}

// Release is a view over an <item> element and its enclosure.
type Release struct {
	enclosure

	item *etree.Element
}

// HasDescription reports whether the item has an un-prefixed <description> element, even an empty one.
func (r *Release) HasDescription() bool {
	return childElement(r.item, "", descriptionTag) != nil
}

// AttachDescription appends a <description> element holding markup as a CDATA section.
func (r *Release) AttachDescription(markup string) {
	description := r.item.CreateElement(descriptionTag)
	description.CreateCData(markup)
}

// Deltas returns the delta entries of every deltas container of the item, in document order.
func (r *Release) Deltas() ([]*Delta, error) {
	var deltas []*Delta

	for _, container := range childElements(r.item, r.ns.Prefix, deltasTag) {
		for _, element := range childElements(container, "", enclosureTag) {
			delta := &Delta{
				enclosure: enclosure{element: element, ns: r.ns},
			}

			switch {
			case delta.Version() == "":
				return nil, fmt.Errorf("delta of %s: %w", r.Version(), errMissingVersion)
			case delta.From() == "":
				return nil, fmt.Errorf("delta of %s to %s: %w", r.Version(), delta.Version(), errMissingDeltaSource)
			}

			deltas = append(deltas, delta)
		}
	}

	return deltas, nil
}

// Delta is a view over an enclosure inside a deltas container.
type Delta struct {
	enclosure
}

// From returns the version the delta applies to.
func (d *Delta) From() string {
	return d.attr(d.ns.name(deltaFromAttr))
}
