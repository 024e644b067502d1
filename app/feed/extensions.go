package feed

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"
)

// namespaceURIs lists the known Podcasting-extension namespace variants,
// canonical form first. Feeds in the wild declare any of these; probing
// happens in this order and the first variant with a non-empty match per
// tag family wins.
var namespaceURIs = []string{
	"https://podcastindex.org/namespace/1.0",
	"https://github.com/Podcastindex-org/podcast-namespace/blob/main/docs/1.0.md",
	"https://podcastindex.org/namespace/1.0/",
}

// extensionNode is one raw namespaced element captured from the document.
type extensionNode struct {
	uri   string
	attrs map[string]string
	text  string
}

// extensionNodes groups captured elements of one channel or item by tag
// family.
type extensionNodes struct {
	funding     []extensionNode
	transcripts []extensionNode
	people      []extensionNode
	chapters    []extensionNode
}

func (n *extensionNodes) add(local string, node extensionNode) {
	switch local {
	case "funding":
		n.funding = append(n.funding, node)
	case "transcript":
		n.transcripts = append(n.transcripts, node)
	case "person":
		n.people = append(n.people, node)
	case "chapters":
		n.chapters = append(n.chapters, node)
	}
}

// ExtensionParser extracts Podcasting-extension metadata in a second pass
// over the raw bytes, so namespace URIs can be matched exactly instead of
// relying on whatever prefix the document happens to declare.
type ExtensionParser struct {
	uriSet map[string]bool
}

func NewExtensionParser() *ExtensionParser {
	uriSet := make(map[string]bool, len(namespaceURIs))
	for _, uri := range namespaceURIs {
		uriSet[uri] = true
	}
	return &ExtensionParser{uriSet: uriSet}
}

// Run returns the channel-level payload and one payload per item, in
// document order matching the base parser's item order. Extension data is
// best-effort: a decode problem yields empty payloads, never an error.
func (p *ExtensionParser) Run(data []byte) (Extensions, []Extensions) {
	channelNodes, itemNodes := p.collect(data)

	itemPayloads := make([]Extensions, len(itemNodes))
	for i, nodes := range itemNodes {
		itemPayloads[i] = p.buildPayload(nodes)
	}

	return p.buildPayload(channelNodes), itemPayloads
}

// collect walks the document once, capturing extension elements at the
// channel level and inside each item/entry. External entity expansion is
// not performed; unknown entities decode to their literal names.
func (p *ExtensionParser) collect(data []byte) (*extensionNodes, []*extensionNodes) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity

	channelNodes := &extensionNodes{}
	var itemNodes []*extensionNodes
	itemDepth := 0

	for {
		token, err := decoder.Token()
		if err != nil {
			if err != io.EOF {
				return channelNodes, itemNodes
			}
			break
		}

		switch t := token.(type) {
		case xml.StartElement:
			if isItemElement(t.Name.Local) {
				itemDepth++
				if itemDepth == 1 {
					itemNodes = append(itemNodes, &extensionNodes{})
				}
				continue
			}

			if !p.uriSet[t.Name.Space] || !isExtensionTag(t.Name.Local) {
				continue
			}

			node, ok := decodeNode(decoder, t)
			if !ok {
				continue
			}
			if itemDepth > 0 && len(itemNodes) > 0 {
				itemNodes[len(itemNodes)-1].add(t.Name.Local, node)
			} else {
				channelNodes.add(t.Name.Local, node)
			}

		case xml.EndElement:
			if isItemElement(t.Name.Local) && itemDepth > 0 {
				itemDepth--
			}
		}
	}

	return channelNodes, itemNodes
}

func isItemElement(local string) bool {
	return local == "item" || local == "entry"
}

func isExtensionTag(local string) bool {
	switch local {
	case "funding", "transcript", "person", "chapters":
		return true
	}
	return false
}

// decodeNode consumes the element the decoder is positioned on, keeping
// its attributes and text content.
func decodeNode(decoder *xml.Decoder, start xml.StartElement) (extensionNode, bool) {
	node := extensionNode{
		uri:   start.Name.Space,
		attrs: make(map[string]string, len(start.Attr)),
	}
	for _, attr := range start.Attr {
		node.attrs[attr.Name.Local] = attr.Value
	}

	var content struct {
		Text string `xml:",chardata"`
	}
	if err := decoder.DecodeElement(&content, &start); err != nil {
		return extensionNode{}, false
	}
	node.text = strings.TrimSpace(content.Text)

	return node, true
}

// buildPayload turns captured nodes into an extension payload, probing
// namespace variants in order per tag family.
func (p *ExtensionParser) buildPayload(nodes *extensionNodes) Extensions {
	payload := Extensions{}

	if node, ok := firstByURI(nodes.funding); ok {
		payload.Funding = &Funding{
			URL:  node.attrs["url"],
			Text: node.text,
		}
	}

	for _, node := range allByURI(nodes.transcripts) {
		payload.Transcripts = append(payload.Transcripts, Transcript{
			URL:      node.attrs["url"],
			Type:     node.attrs["type"],
			Language: node.attrs["language"],
			Rel:      node.attrs["rel"],
			Label:    transcriptLabel(node.attrs["language"], node.attrs["type"]),
		})
	}

	for _, node := range allByURI(nodes.people) {
		role := strings.ToLower(strings.TrimSpace(node.attrs["role"]))
		if role == "" {
			// The extension defines host as the default role.
			role = "host"
		}
		payload.People = append(payload.People, Person{
			Name:  node.text,
			Role:  role,
			Group: node.attrs["group"],
			Image: node.attrs["img"],
			Href:  node.attrs["href"],
		})
	}

	if node, ok := firstByURI(nodes.chapters); ok {
		payload.Chapters = &Chapters{
			URL:      node.attrs["url"],
			Type:     node.attrs["type"],
			Chapters: []Chapter{},
		}
	}

	return payload
}

// firstByURI returns the first node of the first namespace variant that
// has any nodes at all.
func firstByURI(nodes []extensionNode) (extensionNode, bool) {
	matched := allByURI(nodes)
	if len(matched) == 0 {
		return extensionNode{}, false
	}
	return matched[0], true
}

func allByURI(nodes []extensionNode) []extensionNode {
	for _, uri := range namespaceURIs {
		var matched []extensionNode
		for _, node := range nodes {
			if node.uri == uri {
				matched = append(matched, node)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return nil
}

func transcriptLabel(language, mimeType string) string {
	if language != "" {
		return strings.ToUpper(language)
	}
	switch mimeType {
	case "text/vtt":
		return "VTT"
	case "application/srt", "text/srt":
		return "SRT"
	case "application/json":
		return "JSON"
	case "text/html":
		return "HTML"
	}
	return "Transcript"
}

// Merge combines an item-level payload with the channel-level payload.
// Item funding wins; transcripts concatenate item-first (duplicates are
// preserved); people concatenate channel-first and re-sort by role
// priority while staying available as separate sub-lists; chapters prefer
// the item-level document.
func Merge(item, channel Extensions) Extensions {
	merged := Extensions{}

	if item.Funding != nil {
		merged.Funding = item.Funding
	} else {
		merged.Funding = channel.Funding
	}

	if len(item.Transcripts) > 0 || len(channel.Transcripts) > 0 {
		merged.Transcripts = append(append([]Transcript{}, item.Transcripts...), channel.Transcripts...)
	}

	if len(channel.People) > 0 {
		merged.PeopleChannel = append([]Person{}, channel.People...)
	}
	if len(item.People) > 0 {
		merged.PeopleEpisode = append([]Person{}, item.People...)
	}
	if len(channel.People) > 0 || len(item.People) > 0 {
		people := append(append([]Person{}, channel.People...), item.People...)
		sort.SliceStable(people, func(i, j int) bool {
			return rolePriority(people[i].Role) < rolePriority(people[j].Role)
		})
		merged.People = people
	}

	if item.Chapters != nil {
		merged.Chapters = item.Chapters
	} else {
		merged.Chapters = channel.Chapters
	}

	return merged
}
