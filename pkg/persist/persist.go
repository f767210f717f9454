// Package persist reads and writes model systems as JSON documents.
//
// Nodes are numbered in pre-order (a boundary's starts, then its nodes,
// then its child boundaries) and links refer to their origin and
// destinations by that number. Types are listed once and referenced by
// position.
//
// Files ending in ".zst" are zstd-compressed. Every file read or written
// is fingerprinted with BLAKE3 so external edits can be told apart from
// the editor's own saves.
package persist

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/ritzau/msedit/pkg/model"
)

// CompressedExt marks model system files stored zstd-compressed
const CompressedExt = ".zst"

// ErrCorrupt is wrapped by every structural problem found while loading
var ErrCorrupt = errors.New("corrupt model system document")

// Document is the on-disk form of a model system
type Document struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Types       []string     `json:"types"`
	Global      BoundaryData `json:"global"`
}

type BoundaryData struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Starts        []NodeData     `json:"starts,omitempty"`
	Nodes         []NodeData     `json:"nodes,omitempty"`
	Links         []LinkData     `json:"links,omitempty"`
	Comments      []BlockData    `json:"comments,omitempty"`
	Documentation []BlockData    `json:"documentation,omitempty"`
	Boundaries    []BoundaryData `json:"boundaries,omitempty"`
}

type NodeData struct {
	Index       int             `json:"index"`
	Name        string          `json:"name"`
	Type        int             `json:"type"`
	Description string          `json:"description,omitempty"`
	Location    model.Rectangle `json:"location"`
	Disabled    bool            `json:"disabled,omitempty"`
	Parameter   *string         `json:"parameter,omitempty"`
}

type LinkData struct {
	Origin       int    `json:"origin"`
	Hook         string `json:"hook"`
	Destinations []int  `json:"destinations"`
	Disabled     bool   `json:"disabled,omitempty"`
}

type BlockData struct {
	Text     string          `json:"text"`
	Location model.Rectangle `json:"location"`
}

// Marshal encodes ms as an indented JSON document
func Marshal(ms *model.ModelSystem) ([]byte, error) {
	doc, err := Encode(ms)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Encode builds the document for ms
func Encode(ms *model.ModelSystem) (*Document, error) {
	e := &encoder{
		typeIndex: make(map[model.TypeName]int),
		nodeIndex: make(map[*model.Node]int),
	}
	ms.GlobalBoundary().Walk(func(b *model.Boundary) bool {
		for _, n := range append(b.Starts(), b.Nodes()...) {
			e.nodeIndex[n] = len(e.nodeIndex)
		}
		return true
	})

	global, err := e.boundary(ms.GlobalBoundary())
	if err != nil {
		return nil, err
	}
	h := ms.Header()
	return &Document{
		Name:        h.Name,
		Description: h.Description,
		Types:       e.types,
		Global:      global,
	}, nil
}

type encoder struct {
	types     []string
	typeIndex map[model.TypeName]int
	nodeIndex map[*model.Node]int
}

func (e *encoder) typeOf(t model.TypeName) int {
	if i, ok := e.typeIndex[t]; ok {
		return i
	}
	i := len(e.types)
	e.types = append(e.types, string(t))
	e.typeIndex[t] = i
	return i
}

func (e *encoder) node(n *model.Node) NodeData {
	d := NodeData{
		Index:       e.nodeIndex[n],
		Name:        n.Name(),
		Type:        e.typeOf(n.Type()),
		Description: n.Description(),
		Location:    n.Location(),
		Disabled:    n.Disabled(),
	}
	if v, ok := n.ParameterValue(); ok {
		d.Parameter = &v
	}
	return d
}

func (e *encoder) boundary(b *model.Boundary) (BoundaryData, error) {
	d := BoundaryData{Name: b.Name(), Description: b.Description()}
	for _, s := range b.Starts() {
		d.Starts = append(d.Starts, e.node(s))
	}
	for _, n := range b.Nodes() {
		d.Nodes = append(d.Nodes, e.node(n))
	}
	for _, l := range b.Links() {
		ld := LinkData{
			Origin:       e.nodeIndex[l.Origin()],
			Hook:         l.OriginHook().Name,
			Destinations: []int{},
			Disabled:     l.Disabled(),
		}
		for _, dest := range l.Destinations() {
			i, ok := e.nodeIndex[dest]
			if !ok {
				return d, fmt.Errorf("link %s.%s points to detached node %s",
					l.Origin().Name(), l.OriginHook().Name, dest.Name())
			}
			ld.Destinations = append(ld.Destinations, i)
		}
		d.Links = append(d.Links, ld)
	}
	for _, c := range b.CommentBlocks() {
		d.Comments = append(d.Comments, BlockData{Text: c.Text(), Location: c.Location()})
	}
	for _, doc := range b.DocumentationBlocks() {
		d.Documentation = append(d.Documentation, BlockData{Text: doc.Text(), Location: doc.Location()})
	}
	for _, child := range b.Boundaries() {
		cd, err := e.boundary(child)
		if err != nil {
			return d, err
		}
		d.Boundaries = append(d.Boundaries, cd)
	}
	return d, nil
}

// Unmarshal decodes a JSON document, resolving types through types
func Unmarshal(data []byte, types model.TypeDescriber) (*model.ModelSystem, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Decode(&doc, types)
}

// Decode rebuilds a model system from doc
func Decode(doc *Document, types model.TypeDescriber) (*model.ModelSystem, error) {
	d := &decoder{nodes: make(map[int]*model.Node)}
	for _, name := range doc.Types {
		desc, err := types.DescribeType(model.TypeName(name))
		if err != nil {
			return nil, err
		}
		d.types = append(d.types, desc)
	}

	ms := model.NewModelSystem(model.Header{Name: doc.Name, Description: doc.Description})
	global := ms.GlobalBoundary()
	global.SetDescription(doc.Global.Description)
	if err := d.boundary(global, &doc.Global); err != nil {
		return nil, err
	}
	for _, p := range d.pending {
		if err := d.link(p.boundary, p.data); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

type pendingLink struct {
	boundary *model.Boundary
	data     LinkData
}

type decoder struct {
	types   []*model.TypeDescription
	nodes   map[int]*model.Node
	pending []pendingLink
}

func (d *decoder) boundary(b *model.Boundary, data *BoundaryData) error {
	for _, sd := range data.Starts {
		s, err := b.AddStart(sd.Name)
		if err != nil {
			return fmt.Errorf("start %s: %w", sd.Name, err)
		}
		if err := d.fill(s, sd); err != nil {
			return err
		}
	}
	for _, nd := range data.Nodes {
		if nd.Type < 0 || nd.Type >= len(d.types) {
			return fmt.Errorf("%w: node %s has type index %d of %d", ErrCorrupt, nd.Name, nd.Type, len(d.types))
		}
		n, err := b.AddNode(nd.Name, d.types[nd.Type])
		if err != nil {
			return fmt.Errorf("node %s: %w", nd.Name, err)
		}
		if err := d.fill(n, nd); err != nil {
			return err
		}
	}
	for _, ld := range data.Links {
		d.pending = append(d.pending, pendingLink{boundary: b, data: ld})
	}
	for _, c := range data.Comments {
		b.AddCommentBlock(c.Text, c.Location)
	}
	for _, doc := range data.Documentation {
		b.AddDocumentationBlock(doc.Text, doc.Location)
	}
	for i := range data.Boundaries {
		cd := &data.Boundaries[i]
		child, err := b.AddBoundary(cd.Name)
		if err != nil {
			return fmt.Errorf("boundary %s: %w", cd.Name, err)
		}
		child.SetDescription(cd.Description)
		if err := d.boundary(child, cd); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) fill(n *model.Node, nd NodeData) error {
	if _, dup := d.nodes[nd.Index]; dup {
		return fmt.Errorf("%w: node index %d used twice", ErrCorrupt, nd.Index)
	}
	d.nodes[nd.Index] = n
	n.SetDescription(nd.Description)
	n.SetLocation(nd.Location)
	n.SetDisabled(nd.Disabled)
	if nd.Parameter != nil {
		if err := n.SetParameterValue(*nd.Parameter); err != nil {
			return fmt.Errorf("node %s: %w", nd.Name, err)
		}
	}
	return nil
}

func (d *decoder) link(b *model.Boundary, ld LinkData) error {
	origin, ok := d.nodes[ld.Origin]
	if !ok {
		return fmt.Errorf("%w: link origin %d does not exist", ErrCorrupt, ld.Origin)
	}
	hook := origin.Hook(ld.Hook)
	if hook == nil {
		return fmt.Errorf("%w: %s has no hook %s", ErrCorrupt, origin.Name(), ld.Hook)
	}
	dests := make([]*model.Node, 0, len(ld.Destinations))
	for _, i := range ld.Destinations {
		n, ok := d.nodes[i]
		if !ok {
			return fmt.Errorf("%w: link %s.%s destination %d does not exist", ErrCorrupt, origin.Name(), ld.Hook, i)
		}
		dests = append(dests, n)
	}

	var l model.Link
	var err error
	if hook.Cardinality.IsMulti() {
		l, err = model.NewMultiLink(origin, hook, dests...)
	} else {
		if len(dests) != 1 {
			return fmt.Errorf("%w: single link %s.%s has %d destinations", ErrCorrupt, origin.Name(), ld.Hook, len(dests))
		}
		l, err = model.NewSingleLink(origin, hook, dests[0])
	}
	if err != nil {
		return fmt.Errorf("link %s.%s: %w", origin.Name(), ld.Hook, err)
	}
	l.SetDisabled(ld.Disabled)
	return b.InsertLink(len(b.Links()), l)
}

// Digest fingerprints a document. Surrounding whitespace is ignored.
func Digest(data []byte) string {
	sum := blake3.Sum256(bytes.TrimSpace(data))
	return hex.EncodeToString(sum[:])
}

func compressed(path string) bool {
	return strings.HasSuffix(path, CompressedExt)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadDocument returns the JSON document stored at path, decompressing
// it when needed
func ReadDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil || !compressed(path) {
		return data, err
	}
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()
	plain, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("%s: decompressing: %w", path, err)
	}
	return plain, nil
}

// WriteFile saves ms to path, replacing the file atomically, and records
// the written content's digest in the header of ms
func WriteFile(path string, ms *model.ModelSystem) error {
	data, err := Marshal(ms)
	if err != nil {
		return err
	}
	digest := Digest(data)
	data = append(data, '\n')
	if compressed(path) {
		if data, err = compress(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".msedit-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	h := ms.Header()
	h.Digest = digest
	ms.SetHeader(h)
	return nil
}

// ReadFile loads the model system stored at path; its header records path
// and the content digest
func ReadFile(path string, types model.TypeDescriber) (*model.ModelSystem, error) {
	data, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	ms, err := Unmarshal(data, types)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	h := ms.Header()
	h.Path = path
	h.Digest = Digest(data)
	ms.SetHeader(h)
	return ms, nil
}
