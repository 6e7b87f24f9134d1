// Package trie implements the prefix tree used to check, one letter at a
// time, whether a partial reconstruction is still a prefix of some word in
// the dictionary and whether a word boundary may be inserted after it.
//
// A Trie is built once and then only read; any number of goroutines may
// read it concurrently.
package trie

// Result is the outcome of walking a symbol sequence from a node.
type Result int

const (
	// NoMatch means some symbol had no matching child.
	NoMatch Result = iota
	// Match means the whole sequence was walked and the ending node is not
	// the end of any inserted word.
	Match
	// WordEnd means the whole sequence was walked and an inserted word
	// terminates at the ending node.
	WordEnd
)

func (r Result) String() string {
	switch r {
	case NoMatch:
		return "no-match"
	case Match:
		return "match"
	case WordEnd:
		return "word-end"
	default:
		return "unknown"
	}
}

// Matched reports whether the walk consumed every symbol.
func (r Result) Matched() bool {
	return r == Match || r == WordEnd
}

// Node is one character position in the tree.
type Node struct {
	label    rune
	children map[rune]*Node
	wordEnd  bool
	root     bool
}

func newNode(label rune) *Node {
	return &Node{label: label}
}

// Label returns the character this node represents. The root's label is 0.
func (n *Node) Label() rune { return n.label }

// IsWordEnd reports whether an inserted word terminates here.
func (n *Node) IsWordEnd() bool { return n.wordEnd }

// IsRoot reports whether n is the root of its tree.
func (n *Node) IsRoot() bool { return n.root }

// Child returns the child labelled r, or nil.
func (n *Node) Child(r rune) *Node {
	return n.children[r]
}

// NumChildren returns the number of distinct labels below n.
func (n *Node) NumChildren() int { return len(n.children) }

// Trie owns a tree of nodes rooted at a single root.
type Trie struct {
	root  *Node
	words int
	nodes int
}

// New builds a trie holding every word in words.
func New(words ...string) *Trie {
	t := &Trie{root: &Node{root: true}, nodes: 1}
	for _, w := range words {
		t.Insert(w)
	}
	return t
}

// Root returns the root node.
func (t *Trie) Root() *Node { return t.root }

// Len returns the number of distinct words inserted.
func (t *Trie) Len() int { return t.words }

// Nodes returns the number of nodes, root included.
func (t *Trie) Nodes() int { return t.nodes }

// Insert adds word as a root-to-leaf path, creating nodes only where they are
// missing. Characters are not validated: every rune becomes a label. The
// empty word marks nothing.
func (t *Trie) Insert(word string) {
	if word == "" {
		return
	}
	cur := t.root
	for _, r := range word {
		next, ok := cur.children[r]
		if !ok {
			if cur.children == nil {
				cur.children = make(map[rune]*Node)
			}
			next = newNode(r)
			cur.children[r] = next
			t.nodes++
		}
		cur = next
	}
	if !cur.wordEnd {
		cur.wordEnd = true
		t.words++
	}
}

// LookupPrefix walks symbols from node one child at a time. On NoMatch the
// returned node is nil; otherwise it is the node the walk ended on, so the
// caller can keep extending from there. An empty symbol sequence ends on
// node itself.
func LookupPrefix(node *Node, symbols string) (Result, *Node) {
	cur := node
	for _, r := range symbols {
		next, ok := cur.children[r]
		if !ok {
			return NoMatch, nil
		}
		cur = next
	}
	if cur.wordEnd {
		return WordEnd, cur
	}
	return Match, cur
}

// Step is LookupPrefix for a single symbol without string conversion.
func Step(node *Node, r rune) (Result, *Node) {
	next, ok := node.children[r]
	if !ok {
		return NoMatch, nil
	}
	if next.wordEnd {
		return WordEnd, next
	}
	return Match, next
}

// Lookup walks symbols from the root.
func (t *Trie) Lookup(symbols string) (Result, *Node) {
	return LookupPrefix(t.root, symbols)
}

// Contains reports whether word was inserted.
func (t *Trie) Contains(word string) bool {
	res, _ := t.Lookup(word)
	return res == WordEnd
}

// HasPrefix reports whether some inserted word starts with prefix.
func (t *Trie) HasPrefix(prefix string) bool {
	res, _ := t.Lookup(prefix)
	return res.Matched()
}
